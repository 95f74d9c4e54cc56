package workflow

import (
	"context"
	"errors"
	"strings"

	"courtside/internal/logging"
	"courtside/internal/notifications"
	"courtside/internal/runstore"
	"courtside/internal/services"
)

// failRun moves the run to FAILED, logs, notifies and returns err.
func (r *Runner) failRun(ctx context.Context, state *runState, result *Result, stage string, err error) error {
	message := classifyFailure(stage, err)
	logger := logging.WithContext(ctx, r.logger)
	persistCtx := context.WithoutCancel(ctx)

	if advErr := state.advance(persistCtx, runstore.StatusFailed, message); advErr != nil {
		logger.Error("failed to persist run failure", logging.Error(advErr))
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Info("analysis run cancelled",
			logging.String(logging.FieldEventType, "run_cancelled"),
			logging.String("stage", stage),
			logging.Int("produced", result.Produced),
		)
	} else {
		logging.ErrorWithContext(logger, "analysis run failed", "run_failure",
			logging.Alert("run_failure"),
			logging.String("failed_stage", stage),
			logging.String("error_message", message),
			logging.String(logging.FieldErrorHint, failureHint(err)),
			logging.Error(err),
		)
	}

	r.notify(persistCtx, notifications.EventRunFailed, notifications.Payload{
		"runID": result.RunID,
		"stage": stage,
		"error": message,
	})
	return err
}

func classifyFailure(stage string, err error) string {
	if err == nil {
		if stage != "" {
			return stage + " failed without error detail"
		}
		return "run failed without error detail"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if message := strings.TrimSpace(err.Error()); message != "" {
		return message
	}
	return stage + " failed"
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrMedia):
		return "verify the video file opens with ffprobe and is not truncated"
	case errors.Is(err, services.ErrConfiguration):
		return "fix the configuration and run again"
	case errors.Is(err, services.ErrGeneration):
		return "check the generation API key, model and rate limits"
	case errors.Is(err, services.ErrExternalTool):
		return "check the external tool installation with courtside preflight"
	default:
		return "check logs for details"
	}
}
