package redirect

import (
	"context"

	"go.uber.org/zap"
)

// Target is a resolved navigation destination.
type Target struct {
	URL  string `json:"target"`
	Step string `json:"step"`
}

// Resolver walks its steps in order and stops at the first match.
type Resolver struct {
	steps    []Step
	fallback *DefaultStep
	logger   *zap.Logger
}

// NewResolver builds a chain of steps followed by a default step for
// fallbackURL.
func NewResolver(logger *zap.Logger, fallbackURL string, steps ...Step) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		steps:    append([]Step(nil), steps...),
		fallback: NewDefaultStep(fallbackURL),
		logger:   logger,
	}
}

// Resolve returns the target for path. It never fails; step errors are logged
// as warnings and the chain falls through.
func (r *Resolver) Resolve(ctx context.Context, path string) Target {
	for _, step := range r.steps {
		if step == nil {
			continue
		}
		target, ok, err := step.Resolve(ctx, path)
		if err != nil {
			r.logger.Warn("redirect step failed, continuing to next priority",
				zap.String("step", step.Name()),
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		if ok && target != "" {
			r.logger.Info("redirect resolved",
				zap.String("step", step.Name()),
				zap.String("path", path),
				zap.String("target", target),
			)
			return Target{URL: target, Step: step.Name()}
		}
	}
	target, _, _ := r.fallback.Resolve(ctx, path)
	r.logger.Info("using default redirect", zap.String("path", path), zap.String("target", target))
	return Target{URL: target, Step: r.fallback.Name()}
}
