package workflow

import (
	"context"
	"errors"

	"courtside/internal/logging"
	"courtside/internal/notifications"
)

func (r *Runner) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if r.deps.Notifier == nil {
		return
	}
	if err := r.deps.Notifier.Publish(ctx, event, payload); err != nil {
		logger := logging.WithContext(ctx, r.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("run cancelled, could not send notification", logging.String("event", string(event)))
			return
		}
		logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
