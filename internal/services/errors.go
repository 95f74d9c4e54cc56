package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMedia marks unreadable or corrupt video input. Fatal for the run.
	ErrMedia = errors.New("media error")
	// ErrDetectionGap marks a pose detection miss. Recorded as a missing sample.
	ErrDetectionGap = errors.New("detection gap")
	// ErrGeneration marks a report branch that exhausted its generation budget.
	ErrGeneration = errors.New("generation error")
	// ErrConfiguration marks invalid run configuration. Fatal before sampling.
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must abort the whole run rather than a single
// frame or branch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMedia) || errors.Is(err, ErrConfiguration)
}

// IsRetryable reports whether an external call that failed with err may be
// attempted again. Timeouts count as transient.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
