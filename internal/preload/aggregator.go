package preload

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/JakeFAU/guc-preloader/internal/clock"
	"github.com/JakeFAU/guc-preloader/internal/clock/system"
	"github.com/JakeFAU/guc-preloader/internal/progress"
)

// DefaultWeight is applied to tasks registered without a usable weight.
const DefaultWeight = 1.0

// minTotal floors the registered weight so progress never divides by zero.
const minTotal = 1.0

// Work is a unit of preload work. A non-nil error marks the task as failed.
type Work func(ctx context.Context) error

// Await adapts an already-running operation that reports its outcome on
// pending. A nil value or a closed channel counts as success.
func Await(pending <-chan error) Work {
	return func(ctx context.Context) error {
		if pending == nil {
			return errors.New("await: nil pending channel")
		}
		select {
		case err := <-pending:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TaskOptions carries the optional diagnostic name and weight of a task.
type TaskOptions struct {
	Name   string
	Weight float64
}

// Task is the handle returned for submitted work.
type Task struct {
	name   string
	weight float64
	done   chan struct{}
}

// Name returns the diagnostic label.
func (t *Task) Name() string { return t.name }

// Weight returns the normalized weight counted for the task.
func (t *Task) Weight() float64 { return t.weight }

// Done is closed once the task has settled and its weight was counted.
func (t *Task) Done() <-chan struct{} { return t.done }

// Options configures an Aggregator.
type Options struct {
	SessionID uuid.UUID
	Emitter   progress.Emitter
	Clock     clock.Clock
	Logger    *zap.Logger
}

// Aggregator serializes weighted tasks and reports their combined progress.
// It is safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	total    float64
	finished float64
	progress float64
	// tail is closed when the most recently submitted task settles.
	tail <-chan struct{}

	sessionID uuid.UUID
	emitter   progress.Emitter
	clock     clock.Clock
	logger    *zap.Logger
}

// New constructs an empty Aggregator.
func New(opts Options) *Aggregator {
	if opts.Emitter == nil {
		opts.Emitter = progress.NopEmitter{}
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Aggregator{
		sessionID: opts.SessionID,
		emitter:   opts.Emitter,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}
}

// NormalizeWeight maps non-positive, NaN and infinite weights to DefaultWeight.
func NormalizeWeight(w float64) float64 {
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return DefaultWeight
	}
	return w
}

// Register adds weight to the running total without scheduling work.
func (a *Aggregator) Register(weight float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.register(NormalizeWeight(weight))
}

func (a *Aggregator) register(w float64) {
	a.total = math.Max(minTotal, a.total+w)
}

// Run registers the task's weight and schedules work to start once every
// previously submitted task has settled. Failures are logged and counted as
// finished; they are never returned to the caller.
func (a *Aggregator) Run(ctx context.Context, work Work, opts TaskOptions) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	task := &Task{
		name:   opts.Name,
		weight: NormalizeWeight(opts.Weight),
		done:   make(chan struct{}),
	}

	a.mu.Lock()
	a.register(task.weight)
	prev := a.tail
	a.tail = task.done
	current := a.progress
	a.mu.Unlock()

	a.emit(progress.Event{Stage: progress.StageTaskQueued, Task: task.name, Weight: task.weight, Progress: current})

	go a.execute(ctx, prev, task, work)
	return task
}

func (a *Aggregator) execute(ctx context.Context, prev <-chan struct{}, task *Task, work Work) {
	defer close(task.done)
	if prev != nil {
		<-prev
	}
	start := a.clock.Now()
	err := invoke(ctx, work)
	a.finish(task, err, a.clock.Now().Sub(start))
}

func invoke(ctx context.Context, work Work) error {
	if work == nil {
		return nil
	}
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() { err = work(ctx) })
	if recovered := catcher.Recovered(); recovered != nil {
		return recovered.AsError()
	}
	return err
}

func (a *Aggregator) finish(task *Task, err error, dur time.Duration) {
	a.mu.Lock()
	a.finished += task.weight
	total := math.Max(minTotal, a.total)
	a.progress = clamp01(math.Max(a.progress, a.finished/total))
	current := a.progress
	a.mu.Unlock()

	evt := progress.Event{
		Stage:    progress.StageTaskDone,
		Task:     task.name,
		Weight:   task.weight,
		Progress: current,
		Dur:      max(dur, 0),
	}
	if err != nil {
		evt.Stage = progress.StageTaskFailed
		evt.Note = err.Error()
		a.logger.Warn("preload task failed",
			zap.String("task", task.name),
			zap.Float64("weight", task.weight),
			zap.Error(err),
		)
	}
	a.emit(evt)
}

func (a *Aggregator) emit(evt progress.Event) {
	evt.SessionID = a.sessionID
	evt.TS = a.clock.Now()
	a.emitter.Emit(evt)
}

// Progress returns the completed fraction in [0, 1].
func (a *Aggregator) Progress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// Settled returns a channel closed once every task submitted so far has
// settled.
func (a *Aggregator) Settled() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tail == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return a.tail
}

// Reset clears all counters. Tasks already queued keep running and count
// against the cleared totals when they settle.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = 0
	a.finished = 0
	a.progress = 0
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
