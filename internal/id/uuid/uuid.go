// Package uuid generates identifiers for sessions and navigation records.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator hands out time-ordered UUIDv7 values so journal rows sort by
// creation.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a fresh UUIDv7.
func (Generator) NewID() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return id, nil
}

// MustNewID is NewID for callers that cannot surface an error. It falls back
// to a random v4 value when the v7 source fails.
func (g Generator) MustNewID() uuid.UUID {
	if id, err := g.NewID(); err == nil {
		return id
	}
	return uuid.New()
}

// Parse validates a textual identifier received from a client.
func Parse(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse id %q: %w", raw, err)
	}
	return id, nil
}
