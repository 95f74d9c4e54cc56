package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"courtside/internal/config"
)

// Event identifies a notification category.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventRunFailed    Event = "run_failed"
	EventBranchFailed Event = "branch_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Keys used by the formatters: runID, video,
// reports, failed, duration, branch, error, stage.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	Close() error
}

// NewService builds the notifiers enabled in cfg. When none are configured a
// noop implementation is returned.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if cfg == nil {
		return noopService{}
	}
	var sinks []Service
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		sinks = append(sinks, newNtfyService(cfg.Notifications))
	}
	if cfg.MQTT.Enabled && strings.TrimSpace(cfg.MQTT.Broker) != "" {
		sinks = append(sinks, newMQTTService(cfg.MQTT, cfg.Notifications, logger))
	}
	switch len(sinks) {
	case 0:
		return noopService{}
	case 1:
		return sinks[0]
	default:
		return multiService(sinks)
	}
}

// allowed reports whether event passes the configured filters.
func allowed(cfg config.Notifications, event Event) bool {
	switch event {
	case EventRunStarted, EventRunCompleted, EventRunFailed:
		return cfg.RunEvents
	case EventBranchFailed:
		return cfg.BranchFailures
	default:
		return true
	}
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, svc := range m {
		if err := svc.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiService) Close() error {
	var errs []error
	for _, svc := range m {
		if err := svc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
func (noopService) Close() error                                  { return nil }

func stringValue(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func intValue(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func durationValue(payload Payload, key string) time.Duration {
	switch v := payload[key].(type) {
	case time.Duration:
		return v
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return 0
	}
}
