package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/guc-preloader/internal/progress"
)

// LogSink emits structured logs for lifecycle streams. It is useful during
// development or audits where metrics are not scraped.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields. Failed tasks
// are logged at warn level.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("session_id", evt.SessionID),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
			zap.Float64("progress", evt.Progress),
		}
		switch evt.Stage {
		case progress.StageTaskQueued, progress.StageTaskDone, progress.StageTaskFailed:
			fields = append(fields,
				zap.String("task", evt.Task),
				zap.Float64("weight", evt.Weight),
				zap.Duration("dur", evt.Dur),
			)
		case progress.StageNavigated:
			fields = append(fields, zap.String("step", evt.Step), zap.String("target", evt.Target))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == progress.StageTaskFailed {
			s.logger.Warn("lifecycle event", fields...)
			continue
		}
		s.logger.Info("lifecycle event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
