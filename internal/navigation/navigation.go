// Package navigation journals the redirects produced when sessions end.
//
// A Navigator is the side effect a session controller performs once it has
// resolved a target. The Recorder implementation stamps each navigation,
// appends it to a Store, counts it and reports it on the lifecycle hub.
package navigation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit bounds Recent when callers pass a non-positive limit.
const DefaultListLimit = 50

// ErrStoreClosed is returned by stores after Close.
var ErrStoreClosed = errors.New("navigation store is closed")

// Record is one completed navigation.
type Record struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Path      string    `json:"path"`
	Target    string    `json:"target"`
	Step      string    `json:"step"`
	At        time.Time `json:"at"`
}

// Navigator performs the navigation for a resolved record. It cannot fail;
// implementations absorb their own errors.
type Navigator interface {
	Navigate(ctx context.Context, rec Record) Record
}

// Store persists navigation records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, rec Record) Record

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, rec Record) Record {
	return f(ctx, rec)
}

// ClampLimit maps non-positive limits to DefaultListLimit and caps the rest
// at max.
func ClampLimit(limit, max int) int {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
