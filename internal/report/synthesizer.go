package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"courtside/internal/language"
	"courtside/internal/logging"
	"courtside/internal/metrics"
	"courtside/internal/services"
)

// Generator produces text for a prompt. Errors marked services.ErrTransient or
// services.ErrTimeout are retried; any other error ends the branch.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures retry behaviour and prompt size.
type Options struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
	ExcerptChars     int
	Logger           *slog.Logger
}

// Synthesizer writes reports through a Generator. It is safe for concurrent
// use by many branches.
type Synthesizer struct {
	gen   Generator
	opts  Options
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewSynthesizer returns a synthesizer over gen.
func NewSynthesizer(gen Generator, opts Options) *Synthesizer {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoffMax <= 0 {
		opts.RetryBackoffMax = 30 * time.Second
	}
	return &Synthesizer{
		gen:   gen,
		opts:  opts,
		log:   logging.NewComponentLogger(opts.Logger, "synthesis"),
		sleep: sleepContext,
		now:   time.Now,
	}
}

type retryAfterer interface {
	RetryAfter() time.Duration
}

// Synthesize generates the report for one (player, role, language) branch.
// On failure it returns a placeholder artifact flagged failed and an error
// marked services.ErrGeneration; cancellation returns ctx.Err() with the
// placeholder.
func (s *Synthesizer) Synthesize(ctx context.Context, m metrics.PlayerMetrics, transcript string, role Role, lang string) (Artifact, error) {
	req := Request{Player: m.Player, Role: role, Language: lang}
	logger := logging.WithContext(ctx, s.log).With(logging.String(logging.FieldBranch, req.Key()))
	headings := Headings(role)
	prompt := BuildPrompt(PromptInput{
		Request:      req,
		Metrics:      m,
		Transcript:   transcript,
		ExcerptChars: s.opts.ExcerptChars,
	})

	attempts := s.opts.MaxRetries + 1
	var lastErr error
	used := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return s.placeholder(req, attempt-1, err), err
		}
		used = attempt
		text, err := s.gen.Generate(ctx, prompt)
		if err == nil {
			sections, missing := ParseSections(text, headings)
			if len(missing) == 0 {
				logger.Debug("report generated", logging.Int("attempt", attempt))
				return Artifact{
					Request:     req,
					Title:       s.title(req),
					Sections:    sections,
					GeneratedAt: s.now().UTC(),
					Attempts:    attempt,
				}, nil
			}
			err = services.Wrap(services.ErrTransient, "synthesis", "parse sections",
				"missing sections: "+strings.Join(missing, ", "), nil)
		}
		lastErr = err
		if ctx.Err() != nil {
			return s.placeholder(req, attempt, ctx.Err()), ctx.Err()
		}
		if !services.IsRetryable(err) || attempt == attempts {
			break
		}
		delay := s.backoff(attempt, err)
		logging.WarnWithContext(logger, "report generation attempt failed", "generation_retry",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("retry_in", delay),
			logging.Error(err),
			logging.String(logging.FieldImpact, "report delayed while retrying"),
			logging.String(logging.FieldErrorHint, "check the generation service status and rate limits"),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return s.placeholder(req, attempt, err), err
		}
	}

	err := services.Wrap(services.ErrGeneration, "synthesis", "generate report",
		fmt.Sprintf("%s failed after %d attempt(s)", req.Key(), used), lastErr)
	return s.placeholder(req, used, err), err
}

func (s *Synthesizer) title(req Request) string {
	return language.Title(req.Language, string(req.Role), fmt.Sprintf("Player %d", req.Player+1))
}

func (s *Synthesizer) placeholder(req Request, attempts int, cause error) Artifact {
	reason := "generation cancelled"
	if cause != nil && !errors.Is(cause, context.Canceled) {
		reason = cause.Error()
	}
	sections := make([]Section, 0, len(Headings(req.Role)))
	for _, h := range Headings(req.Role) {
		sections = append(sections, Section{Heading: h, Body: "Not available: report generation failed."})
	}
	return Artifact{
		Request:       req,
		Title:         s.title(req),
		Sections:      sections,
		GeneratedAt:   s.now().UTC(),
		Attempts:      attempts,
		Failed:        true,
		FailureReason: reason,
	}
}

// backoff returns base*2^(attempt-1) capped at RetryBackoffMax, or the
// server's Retry-After when that is longer.
func (s *Synthesizer) backoff(attempt int, err error) time.Duration {
	delay := s.opts.RetryBackoffBase
	if delay < 0 {
		delay = 0
	}
	for i := 1; i < attempt && delay < s.opts.RetryBackoffMax; i++ {
		delay *= 2
	}
	var ra retryAfterer
	if errors.As(err, &ra) && ra.RetryAfter() > delay {
		delay = ra.RetryAfter()
	}
	return min(delay, s.opts.RetryBackoffMax)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
