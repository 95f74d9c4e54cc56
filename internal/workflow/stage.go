package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"courtside/internal/logging"
	"courtside/internal/services"
)

// stageScope carries the context and logger of one running stage and logs
// its start and completion.
type stageScope struct {
	ctx    context.Context
	logger *slog.Logger
	name   string
	start  time.Time
}

func (r *Runner) beginStage(ctx context.Context, name string) stageScope {
	ctx = services.WithStage(ctx, name)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	scope := stageScope{
		ctx:    ctx,
		logger: logging.WithContext(ctx, r.logger),
		name:   name,
		start:  time.Now(),
	}
	scope.logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
	)
	return scope
}

func (s stageScope) complete(attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(s.start)),
	)
	s.logger.Info("stage completed", logging.Args(attrs...)...)
}

func (s stageScope) fail(err error) {
	if s.ctx.Err() != nil {
		s.logger.Info("stage interrupted",
			logging.String(logging.FieldEventType, "stage_cancelled"),
			logging.Duration("stage_duration", time.Since(s.start)),
		)
		return
	}
	logging.ErrorWithContext(s.logger, "stage failed", "stage_failure",
		logging.Error(err),
		logging.Duration("stage_duration", time.Since(s.start)),
		logging.String(logging.FieldErrorHint, failureHint(err)),
	)
}
