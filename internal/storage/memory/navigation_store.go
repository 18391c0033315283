// Package memory keeps the navigation journal in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/guc-preloader/internal/navigation"
)

// DefaultCapacity is the ring size used when NewNavigationStore gets zero.
const DefaultCapacity = 1024

// NavigationStore retains the most recent navigations in a fixed ring.
type NavigationStore struct {
	mu     sync.RWMutex
	ring   []navigation.Record
	next   int
	size   int
	closed bool
}

// NewNavigationStore creates a store holding up to capacity records.
func NewNavigationStore(capacity int) *NavigationStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &NavigationStore{ring: make([]navigation.Record, capacity)}
}

// Append stores rec, evicting the oldest record once full.
func (s *NavigationStore) Append(_ context.Context, rec navigation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return navigation.ErrStoreClosed
	}
	s.ring[s.next] = rec
	s.next = (s.next + 1) % len(s.ring)
	if s.size < len(s.ring) {
		s.size++
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *NavigationStore) Recent(_ context.Context, limit int) ([]navigation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, navigation.ErrStoreClosed
	}
	limit = navigation.ClampLimit(limit, s.size)
	out := make([]navigation.Record, 0, limit)
	for i := 1; i <= limit && i <= s.size; i++ {
		idx := (s.next - i + len(s.ring)) % len(s.ring)
		out = append(out, s.ring[idx])
	}
	return out, nil
}

// Len reports how many records are retained.
func (s *NavigationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Close drops the journal.
func (s *NavigationStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ring = nil
	s.size = 0
	s.next = 0
}
