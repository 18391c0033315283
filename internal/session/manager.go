package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/guc-preloader/internal/clock/system"
	"github.com/JakeFAU/guc-preloader/internal/event"
	"github.com/JakeFAU/guc-preloader/internal/metrics"
	"github.com/JakeFAU/guc-preloader/internal/preload"
	"github.com/JakeFAU/guc-preloader/internal/redirect"
)

// Manager errors.
var (
	ErrNotFound     = errors.New("session not found")
	ErrTaskNotFound = errors.New("pending task not found")
	ErrClosed       = errors.New("session closed")
	ErrReset        = errors.New("session reset")
)

// View is the externally visible state of a session.
type View struct {
	ID           uuid.UUID `json:"id"`
	Progress     float64   `json:"progress"`
	RestartCount int       `json:"restart_count"`
	Loading      bool      `json:"loading"`
	Intermediate bool      `json:"intermediate"`
	PendingTasks int       `json:"pending_tasks"`
	Listeners    int       `json:"listeners"`
	CreatedAt    time.Time `json:"created_at"`
}

type entry struct {
	ctrl    *Controller
	created time.Time

	// resetMu is held exclusively while the bus is cleared and the view
	// listeners re-attached; emitters and task submitters hold it shared.
	resetMu sync.RWMutex

	mu           sync.Mutex
	loading      bool
	intermediate bool
	lastSeen     time.Time
	pending      map[uuid.UUID]chan error
}

// ManagerOption tunes a Manager.
type ManagerOption func(*Manager)

// WithIdleTTL expires sessions untouched for longer than ttl. Zero keeps
// sessions until they are deleted or confirmed.
func WithIdleTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.idleTTL = ttl }
}

// WithMaxSessions caps the number of live sessions. Creating one more evicts
// the least recently used. Zero means no cap.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) { m.maxSessions = n }
}

// Manager keeps live sessions and the view state their listeners drive.
type Manager struct {
	template    Options
	logger      *zap.Logger
	idleTTL     time.Duration
	maxSessions int

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// NewManager builds a Manager. Every session it creates copies template,
// except for the ID.
func NewManager(template Options, opts ...ManagerOption) *Manager {
	if template.Logger == nil {
		template.Logger = zap.NewNop()
	}
	if template.Clock == nil {
		template.Clock = system.New()
	}
	m := &Manager{
		template: template,
		logger:   template.Logger,
		sessions: make(map[uuid.UUID]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) now() time.Time {
	return m.template.Clock.Now()
}

// Create starts a session. Its view begins in the loading state. At the
// session cap the least recently used session is ended first.
func (m *Manager) Create() *Controller {
	opts := m.template
	opts.ID = uuid.Nil
	ctrl := New(opts)
	now := ctrl.now()
	e := &entry{
		ctrl:     ctrl,
		created:  now,
		lastSeen: now,
		loading:  true,
		pending:  make(map[uuid.UUID]chan error),
	}
	e.attach()

	var evictedID uuid.UUID
	var evicted *entry
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		evictedID, evicted = m.leastRecentLocked()
		delete(m.sessions, evictedID)
	}
	m.sessions[ctrl.ID()] = e
	m.mu.Unlock()

	if evicted != nil {
		m.end(evictedID, evicted, "session evicted")
	}
	metrics.IncActiveSessions()
	m.logger.Info("session created", zap.String("session_id", ctrl.ID().String()))
	return ctrl
}

func (m *Manager) leastRecentLocked() (uuid.UUID, *entry) {
	var (
		oldestID uuid.UUID
		oldest   *entry
		seen     time.Time
	)
	for id, e := range m.sessions {
		last := e.seen()
		if oldest == nil || last.Before(seen) {
			oldestID, oldest, seen = id, e, last
		}
	}
	return oldestID, oldest
}

// attach subscribes the view listeners. It runs again after every reset
// because Reset drops all subscriptions.
func (e *entry) attach() {
	e.ctrl.On(event.Preloaded, func() { e.setLoading(false) })
	e.ctrl.On(event.Restart, func() { e.setLoading(true) })
	e.ctrl.On(event.ShowIntermediatePage, func() { e.setIntermediate(true) })
}

func (e *entry) setLoading(v bool) {
	e.mu.Lock()
	e.loading = v
	e.mu.Unlock()
}

func (e *entry) setIntermediate(v bool) {
	e.mu.Lock()
	e.intermediate = v
	e.mu.Unlock()
}

func (e *entry) touch(now time.Time) {
	e.mu.Lock()
	if now.After(e.lastSeen) {
		e.lastSeen = now
	}
	e.mu.Unlock()
}

func (e *entry) seen() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

// lookup finds session id and marks it as used.
func (m *Manager) lookup(id uuid.UUID) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.touch(m.now())
	return e, nil
}

// Get returns the controller for id.
func (m *Manager) Get(id uuid.UUID) (*Controller, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.ctrl, nil
}

// View snapshots the state of session id.
func (m *Manager) View(id uuid.UUID) (View, error) {
	e, err := m.lookup(id)
	if err != nil {
		return View{}, err
	}
	return e.view(), nil
}

func (e *entry) view() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return View{
		ID:           e.ctrl.ID(),
		Progress:     e.ctrl.Progress(),
		RestartCount: e.ctrl.RestartCount(),
		Loading:      e.loading,
		Intermediate: e.intermediate,
		PendingTasks: len(e.pending),
		Listeners:    e.ctrl.Listeners(),
		CreatedAt:    e.created,
	}
}

// List snapshots every live session, oldest first.
func (m *Manager) List() []View {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	views := make([]View, 0, len(entries))
	for _, e := range entries {
		views = append(views, e.view())
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID.String() < views[j].ID.String()
		}
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Emit delivers name to the listeners of session id.
func (m *Manager) Emit(id uuid.UUID, name event.Name) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.resetMu.RLock()
	defer e.resetMu.RUnlock()
	e.ctrl.Emit(name)
	return nil
}

// Restart shows the intermediate page for session id.
func (m *Manager) Restart(id uuid.UUID) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.resetMu.RLock()
	defer e.resetMu.RUnlock()
	e.ctrl.Restart()
	return nil
}

// CancelRestart hides the intermediate page without navigating.
func (m *Manager) CancelRestart(id uuid.UUID) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.setIntermediate(false)
	return nil
}

// AddTask queues a task that completes when SettleTask is called for the
// returned ID.
func (m *Manager) AddTask(id uuid.UUID, opts preload.TaskOptions) (uuid.UUID, error) {
	e, err := m.lookup(id)
	if err != nil {
		return uuid.Nil, err
	}
	taskID := newSessionID(m.template.IDs)
	pending := make(chan error, 1)

	e.resetMu.RLock()
	defer e.resetMu.RUnlock()
	e.mu.Lock()
	e.pending[taskID] = pending
	e.mu.Unlock()

	e.ctrl.RunTask(context.Background(), preload.Await(pending), opts)
	return taskID, nil
}

// SettleTask completes a task added with AddTask. A nil cause marks it done.
func (m *Manager) SettleTask(id, taskID uuid.UUID, cause error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	pending, ok := e.pending[taskID]
	delete(e.pending, taskID)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	pending <- cause
	return nil
}

// Reset resets session id and re-attaches its view listeners. The view flags
// keep their values. Tasks still pending on the discarded aggregator fail
// with ErrReset and can no longer be settled.
func (m *Manager) Reset(id uuid.UUID) (View, error) {
	e, err := m.lookup(id)
	if err != nil {
		return View{}, err
	}
	e.resetMu.Lock()
	e.ctrl.Reset()
	e.attach()
	stale := e.takePending()
	e.resetMu.Unlock()

	for _, ch := range stale {
		ch <- ErrReset
	}
	return e.view(), nil
}

// ConfirmRestart runs the redirect protocol for session id and ends the
// session.
func (m *Manager) ConfirmRestart(ctx context.Context, id uuid.UUID, location string) (redirect.Target, error) {
	e, err := m.lookup(id)
	if err != nil {
		return redirect.Target{}, err
	}
	target := e.ctrl.ConfirmRestart(ctx, location)
	m.Delete(id)
	return target, nil
}

// Delete ends session id. Pending tasks fail with ErrClosed.
func (m *Manager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.end(id, e, "session ended")
	return true
}

// end releases an entry already removed from the map.
func (m *Manager) end(id uuid.UUID, e *entry, msg string) {
	for _, ch := range e.takePending() {
		ch <- ErrClosed
	}
	metrics.DecActiveSessions()
	m.logger.Info(msg, zap.String("session_id", id.String()))
}

func (e *entry) takePending() map[uuid.UUID]chan error {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.pending
	e.pending = make(map[uuid.UUID]chan error)
	return pending
}

// Sweep ends sessions idle for longer than the configured TTL and reports
// how many it removed.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	expired := make(map[uuid.UUID]*entry)
	for id, e := range m.sessions {
		if e.seen().Before(cutoff) {
			expired[id] = e
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for id, e := range expired {
		m.end(id, e, "session expired")
	}
	return len(expired)
}

// RunJanitor sweeps idle sessions every interval until ctx ends.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if m.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		m.Delete(id)
	}
}
