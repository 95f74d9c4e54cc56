package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"courtside/internal/services"
)

// RunConfig is the validated, per-invocation view of configuration consumed by
// the workflow. It is derived from Config and then overridden by CLI flags.
type RunConfig struct {
	VideoSource            string
	OutputDir              string
	SamplingInterval       time.Duration
	PlayerCount            int
	Roles                  []string
	Languages              []string
	MaxRetries             int
	RetryBackoffBase       time.Duration
	RetryBackoffMax        time.Duration
	GenerationConcurrency  int
	MaxConsecutiveSkips    int
	StallTimeout           time.Duration
	MinKeypointConfidence  float64
	EventsPerMetric        int
	TranscriptPath         string
	TranscriptEnabled      bool
	TranscriptExcerptChars int
	RenderPDF              bool
	WriteReadme            bool
	AnnotateVideo          bool
}

// RunConfig builds a RunConfig for video from configured defaults.
func (c *Config) RunConfig(video string) RunConfig {
	return RunConfig{
		VideoSource:            strings.TrimSpace(video),
		OutputDir:              c.Paths.OutputDir,
		SamplingInterval:       secondsToDuration(c.Analysis.SamplingInterval),
		PlayerCount:            c.Analysis.PlayerCount,
		Roles:                  append([]string(nil), c.Reports.Roles...),
		Languages:              append([]string(nil), c.Reports.Languages...),
		MaxRetries:             c.LLM.MaxRetries,
		RetryBackoffBase:       secondsToDuration(c.LLM.RetryBackoffBaseSeconds),
		RetryBackoffMax:        secondsToDuration(c.LLM.RetryBackoffMaxSeconds),
		GenerationConcurrency:  c.LLM.Concurrency,
		MaxConsecutiveSkips:    c.Analysis.MaxConsecutiveSkips,
		StallTimeout:           time.Duration(c.Analysis.StallTimeoutSeconds) * time.Second,
		MinKeypointConfidence:  c.Analysis.MinKeypointConfidence,
		EventsPerMetric:        c.Analysis.EventsPerMetric,
		TranscriptEnabled:      c.Transcript.Enabled,
		TranscriptExcerptChars: c.Reports.TranscriptExcerptChars,
		RenderPDF:              c.Reports.PDF,
		WriteReadme:            c.Reports.Readme,
		AnnotateVideo:          c.Reports.AnnotatedVideo,
	}
}

// Validate checks every field the workflow depends on. Failures are tagged
// with services.ErrConfiguration so callers can stop before sampling.
func (r *RunConfig) Validate() error {
	if err := r.validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "validate run", "", err)
	}
	return nil
}

func (r *RunConfig) validate() error {
	if strings.TrimSpace(r.VideoSource) == "" {
		return errors.New("video_source is required")
	}
	if strings.TrimSpace(r.OutputDir) == "" {
		return errors.New("output directory is required")
	}
	if r.SamplingInterval <= 0 {
		return errors.New("sampling_interval must be positive")
	}
	if r.PlayerCount != 1 && r.PlayerCount != 2 {
		return fmt.Errorf("player_count must be 1 or 2, got %d", r.PlayerCount)
	}
	if err := ValidateRoles(r.Roles); err != nil {
		return err
	}
	if err := ValidateLanguages(r.Languages); err != nil {
		return err
	}
	if r.MaxRetries < 0 {
		return errors.New("max_retries must be >= 0")
	}
	if r.RetryBackoffBase <= 0 {
		return errors.New("retry_backoff_base must be positive")
	}
	if r.RetryBackoffMax < r.RetryBackoffBase {
		return errors.New("retry_backoff_max must be >= retry_backoff_base")
	}
	if r.GenerationConcurrency <= 0 {
		return errors.New("generation concurrency must be positive")
	}
	if r.MaxConsecutiveSkips < 0 {
		return errors.New("max_consecutive_skips must be >= 0")
	}
	if r.StallTimeout <= 0 {
		return errors.New("stall_timeout must be positive")
	}
	if r.MinKeypointConfidence < 0 || r.MinKeypointConfidence > 1 {
		return errors.New("min_keypoint_confidence must be between 0 and 1")
	}
	if r.EventsPerMetric <= 0 {
		return errors.New("events_per_metric must be positive")
	}
	if path := strings.TrimSpace(r.TranscriptPath); path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("transcript file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("transcript file %q is a directory", path)
		}
	}
	return nil
}

// RequestCount is the number of report branches the run fans out to.
func (r *RunConfig) RequestCount() int {
	return r.PlayerCount * len(r.Roles) * len(r.Languages)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
