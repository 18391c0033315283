package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/guc-preloader/internal/clock"
	"github.com/JakeFAU/guc-preloader/internal/clock/system"
	"github.com/JakeFAU/guc-preloader/internal/event"
	"github.com/JakeFAU/guc-preloader/internal/navigation"
	"github.com/JakeFAU/guc-preloader/internal/preload"
	"github.com/JakeFAU/guc-preloader/internal/progress"
	"github.com/JakeFAU/guc-preloader/internal/redirect"
)

// Resolver maps a location path to its navigation target.
type Resolver interface {
	Resolve(ctx context.Context, path string) redirect.Target
}

// IDGenerator hands out session identifiers.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}

// Options wires a Controller. Resolver and Navigator are required for
// ConfirmRestart; everything else has a working default.
type Options struct {
	ID              uuid.UUID
	IDs             IDGenerator
	Resolver        Resolver
	Navigator       navigation.Navigator
	Emitter         progress.Emitter
	Clock           clock.Clock
	Logger          *zap.Logger
	NavigationDelay time.Duration
}

// Controller is a single preload session.
type Controller struct {
	id        uuid.UUID
	bus       *event.Bus
	resolver  Resolver
	navigator navigation.Navigator
	emitter   progress.Emitter
	clock     clock.Clock
	logger    *zap.Logger
	delay     time.Duration

	mu       sync.RWMutex
	agg      *preload.Aggregator
	restarts int
}

// New builds a Controller with a fresh aggregator.
func New(opts Options) *Controller {
	c := &Controller{
		id:        opts.ID,
		resolver:  opts.Resolver,
		navigator: opts.Navigator,
		emitter:   opts.Emitter,
		clock:     opts.Clock,
		logger:    opts.Logger,
		delay:     opts.NavigationDelay,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.clock == nil {
		c.clock = system.New()
	}
	if c.emitter == nil {
		c.emitter = progress.NopEmitter{}
	}
	if c.resolver == nil {
		c.resolver = redirect.NewResolver(c.logger, redirect.DefaultURL)
	}
	if c.navigator == nil {
		c.navigator = navigation.NavigatorFunc(func(_ context.Context, rec navigation.Record) navigation.Record {
			return rec
		})
	}
	if c.delay < 0 {
		c.delay = 0
	}
	if c.id == uuid.Nil {
		c.id = newSessionID(opts.IDs)
	}
	c.logger = c.logger.With(zap.String("session_id", c.id.String()))
	c.bus = event.NewBus(c.logger)
	c.agg = c.newAggregator()
	return c
}

func newSessionID(ids IDGenerator) uuid.UUID {
	if ids != nil {
		if id, err := ids.NewID(); err == nil {
			return id
		}
	}
	if id, err := uuid.NewV7(); err == nil {
		return id
	}
	return uuid.New()
}

func (c *Controller) newAggregator() *preload.Aggregator {
	return preload.New(preload.Options{
		SessionID: c.id,
		Emitter:   c.emitter,
		Clock:     c.clock,
		Logger:    c.logger,
	})
}

// ID returns the session identifier.
func (c *Controller) ID() uuid.UUID { return c.id }

// On subscribes fn to name.
func (c *Controller) On(name event.Name, fn event.Listener) event.SubscriptionID {
	return c.bus.Subscribe(name, fn)
}

// Off removes a subscription made with On.
func (c *Controller) Off(id event.SubscriptionID) bool {
	return c.bus.Unsubscribe(id)
}

// Emit notifies the listeners of name synchronously.
func (c *Controller) Emit(name event.Name) {
	c.bus.Emit(name)
}

// Listeners reports how many subscriptions are active.
func (c *Controller) Listeners() int {
	return c.bus.Count()
}

// Restart asks for the intermediate page. It never navigates.
func (c *Controller) Restart() {
	c.Emit(event.ShowIntermediatePage)
}

// ConfirmRestart resolves location and navigates exactly once. It cannot
// fail: the resolver always yields a target.
func (c *Controller) ConfirmRestart(ctx context.Context, location string) redirect.Target {
	target := c.resolver.Resolve(ctx, location)
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	c.navigator.Navigate(context.WithoutCancel(ctx), navigation.Record{
		SessionID: c.id,
		Path:      location,
		Target:    target.URL,
		Step:      target.Step,
	})
	return target
}

// Reset drops every subscription, discards the aggregator for a fresh one
// and bumps the restart count. Work still queued on the old aggregator
// settles against it and is no longer observed.
func (c *Controller) Reset() {
	c.bus.Clear()

	c.mu.Lock()
	c.agg.Reset()
	c.agg = c.newAggregator()
	c.restarts++
	restarts := c.restarts
	c.mu.Unlock()

	c.emitter.Emit(progress.Event{
		SessionID: c.id,
		TS:        c.now(),
		Stage:     progress.StageSessionReset,
		Note:      "restart " + strconv.Itoa(restarts),
	})
	c.logger.Info("session reset", zap.Int("restart_count", restarts))
}

// RestartCount reports how many times Reset ran.
func (c *Controller) RestartCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.restarts
}

// RunTask schedules work on the current aggregator.
func (c *Controller) RunTask(ctx context.Context, work preload.Work, opts preload.TaskOptions) *preload.Task {
	return c.aggregator().Run(ctx, work, opts)
}

// Register adds weight to the current aggregator without scheduling work.
func (c *Controller) Register(weight float64) {
	c.aggregator().Register(weight)
}

// Progress reads the current aggregator's progress.
func (c *Controller) Progress() float64 {
	return c.aggregator().Progress()
}

// Settled closes once every task on the current aggregator has settled.
func (c *Controller) Settled() <-chan struct{} {
	return c.aggregator().Settled()
}

func (c *Controller) aggregator() *preload.Aggregator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agg
}

func (c *Controller) now() time.Time {
	return c.clock.Now()
}
