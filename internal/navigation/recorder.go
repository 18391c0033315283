package navigation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/guc-preloader/internal/clock"
	"github.com/JakeFAU/guc-preloader/internal/clock/system"
	"github.com/JakeFAU/guc-preloader/internal/metrics"
	"github.com/JakeFAU/guc-preloader/internal/progress"
)

// IDGenerator hands out record identifiers.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}

// RecorderOptions wires a Recorder.
type RecorderOptions struct {
	Store   Store
	IDs     IDGenerator
	Clock   clock.Clock
	Emitter progress.Emitter
	Logger  *zap.Logger
}

// Recorder is the journaling Navigator.
type Recorder struct {
	store   Store
	ids     IDGenerator
	clock   clock.Clock
	emitter progress.Emitter
	logger  *zap.Logger
}

// NewRecorder builds a Recorder. A nil Store still counts and reports
// navigations but keeps no journal.
func NewRecorder(opts RecorderOptions) *Recorder {
	r := &Recorder{
		store:   opts.Store,
		ids:     opts.IDs,
		clock:   opts.Clock,
		emitter: opts.Emitter,
		logger:  opts.Logger,
	}
	if r.emitter == nil {
		r.emitter = progress.NopEmitter{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.clock == nil {
		r.clock = system.New()
	}
	return r
}

// Navigate stamps rec, journals it and reports it. Journal failures are
// logged and counted; the returned record is complete either way.
func (r *Recorder) Navigate(ctx context.Context, rec Record) Record {
	if rec.ID == uuid.Nil {
		rec.ID = r.newID()
	}
	if rec.At.IsZero() {
		rec.At = r.now()
	}

	if r.store != nil {
		if err := r.store.Append(ctx, rec); err != nil {
			metrics.ObserveJournalFailure()
			r.logger.Warn("navigation journal append failed",
				zap.String("navigation_id", rec.ID.String()),
				zap.String("session_id", rec.SessionID.String()),
				zap.Error(err),
			)
		}
	}
	metrics.ObserveRedirect(rec.Step, rec.Target)
	r.emitter.Emit(progress.Event{
		SessionID: rec.SessionID,
		TS:        rec.At,
		Stage:     progress.StageNavigated,
		Step:      rec.Step,
		Target:    rec.Target,
		Note:      rec.Path,
	})
	r.logger.Info("navigating",
		zap.String("session_id", rec.SessionID.String()),
		zap.String("path", rec.Path),
		zap.String("target", rec.Target),
		zap.String("step", rec.Step),
	)
	return rec
}

// Recent lists journaled navigations, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Record, error) {
	if r.store == nil {
		return []Record{}, nil
	}
	return r.store.Recent(ctx, limit)
}

func (r *Recorder) newID() uuid.UUID {
	if r.ids == nil {
		return uuid.New()
	}
	id, err := r.ids.NewID()
	if err != nil {
		r.logger.Warn("navigation id generation failed, using random id", zap.Error(err))
		return uuid.New()
	}
	return id
}

func (r *Recorder) now() time.Time {
	return r.clock.Now()
}
