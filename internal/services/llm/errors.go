package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"courtside/internal/services"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
	Retry      time.Duration
}

func newStatusError(resp *http.Response, body []byte) *StatusError {
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		Retry:      retryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, snippet(e.Body))
}

// RetryAfter returns the server-suggested delay, or zero.
func (e *StatusError) RetryAfter() time.Duration { return e.Retry }

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= http.StatusInternalServerError
	}
}

type emptyReplyError struct {
	FinishReason string
	Refusal      string
}

func (e *emptyReplyError) Error() string {
	return fmt.Sprintf("empty reply (finish_reason=%q, refusal=%q)", e.FinishReason, e.Refusal)
}

// classify attaches a services marker so callers can tell retryable failures
// from permanent ones. Errors caused by ctx ending are returned unchanged.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var (
		statusErr *StatusError
		emptyErr  *emptyReplyError
		netErr    net.Error
	)
	switch {
	case errors.As(err, &statusErr):
		marker := services.ErrGeneration
		if statusErr.Transient() {
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "synthesis", op, "http "+strconv.Itoa(statusErr.StatusCode), err)
	case errors.As(err, &emptyErr):
		return services.Wrap(services.ErrTransient, "synthesis", op, "model returned no text", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return services.Wrap(services.ErrTimeout, "synthesis", op, "request timed out", err)
	case errors.As(err, &netErr):
		return services.Wrap(services.ErrTransient, "synthesis", op, "network error", err)
	default:
		return services.Wrap(services.ErrGeneration, "synthesis", op, "request failed", err)
	}
}

// retryAfter parses a Retry-After header given as seconds or an HTTP date.
func retryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(seconds)*time.Second, 0)
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(when.Sub(now), 0)
	}
	return 0
}
