// Package event provides the synchronous publish-subscribe primitive used by
// preload sessions to announce lifecycle changes.
package event

import (
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Name identifies a session lifecycle event.
type Name string

// Session lifecycle events. None of them carries a payload.
const (
	Preloaded            Name = "preloaded"
	Restart              Name = "restart"
	ShowIntermediatePage Name = "show-intermediate-page"
)

// Names lists every known event in a stable order.
var Names = []Name{Preloaded, Restart, ShowIntermediatePage}

// Parse validates a raw event name.
func Parse(raw string) (Name, error) {
	for _, n := range Names {
		if string(n) == raw {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown event %q", raw)
}

// Listener reacts to an emitted event.
type Listener func()

// SubscriptionID identifies a registered listener.
type SubscriptionID uint64

type subscription struct {
	id       SubscriptionID
	listener Listener
}

// Bus maps event names to ordered listener lists.
type Bus struct {
	mu     sync.Mutex
	subs   map[Name][]subscription
	nextID SubscriptionID
	logger *zap.Logger
}

// NewBus creates an empty bus. A nil logger discards panic reports.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[Name][]subscription),
		logger: logger,
	}
}

// Subscribe appends listener to name's list and returns its ID.
func (b *Bus) Subscribe(name Name, listener Listener) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[name] = append(b.subs[name], subscription{id: b.nextID, listener: listener})
	return b.nextID
}

// Unsubscribe removes a listener. It reports whether the ID was registered.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, subs := range b.subs {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			kept := make([]subscription, 0, len(subs)-1)
			kept = append(kept, subs[:i]...)
			kept = append(kept, subs[i+1:]...)
			b.subs[name] = kept
			return true
		}
	}
	return false
}

// Emit calls the listeners registered for name, in subscription order, on the
// caller's goroutine. The listener list is snapshotted first: listeners added
// during emission wait for the next Emit, and listeners removed during
// emission still receive the current one. A panicking listener is logged and
// skipped.
func (b *Bus) Emit(name Name) {
	b.mu.Lock()
	snapshot := append([]subscription(nil), b.subs[name]...)
	b.mu.Unlock()

	for _, sub := range snapshot {
		if sub.listener == nil {
			continue
		}
		if recovered := panics.Try(sub.listener); recovered != nil {
			b.logger.Error("event listener panicked",
				zap.String("event", string(name)),
				zap.Uint64("subscription", uint64(sub.id)),
				zap.Error(recovered.AsError()),
			)
		}
	}
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Name][]subscription)
}

// Count returns the number of active subscriptions.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}
