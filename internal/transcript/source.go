package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"courtside/internal/config"
	"courtside/internal/logging"
	"courtside/internal/services"
)

// Source produces a transcript for a video.
type Source interface {
	Transcript(ctx context.Context, video string) (string, error)
}

// FileSource reads a transcript prepared ahead of time.
type FileSource struct {
	Path string
}

// Transcript returns the trimmed contents of the file. The video is ignored.
func (f FileSource) Transcript(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcript", "read file", "unable to read transcript file", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// FromRun picks the transcript source for a run: an explicit file wins over
// WhisperX, and nil means no transcript.
func FromRun(cfg *config.Config, run config.RunConfig) Source {
	if path := strings.TrimSpace(run.TranscriptPath); path != "" {
		return FileSource{Path: path}
	}
	if !run.TranscriptEnabled || cfg == nil {
		return nil
	}
	return NewWhisperX(WhisperXConfig{
		Model:        cfg.Transcript.WhisperXModel,
		CUDAEnabled:  cfg.Transcript.CUDAEnabled,
		Language:     cfg.Transcript.Language,
		Timeout:      time.Duration(cfg.Transcript.TimeoutSeconds) * time.Second,
		FFmpegBinary: cfg.Analysis.FFmpegBinary,
	})
}

// Load runs src and returns its transcript. Errors are logged and yield an
// empty transcript; only cancellation of ctx is returned to the caller.
func Load(ctx context.Context, src Source, video string, logger *slog.Logger) (string, error) {
	if src == nil {
		return "", nil
	}
	logger = logging.NewComponentLogger(logger, "transcript")
	start := time.Now()
	text, err := src.Transcript(ctx, video)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.WarnWithContext(logging.WithContext(ctx, logger), "transcript unavailable; continuing without it", "transcript_failed",
			logging.String("source", describe(src)),
			logging.String(logging.FieldErrorHint, "check the transcript file or whisperx installation"),
			logging.String(logging.FieldImpact, "reports are generated without audio context"),
			logging.Error(err),
		)
		return "", nil
	}
	logging.WithContext(ctx, logger).Info("transcript loaded",
		logging.String("source", describe(src)),
		logging.String(logging.FieldEventType, "transcript_loaded"),
		logging.Int("chars", len(text)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

func describe(src Source) string {
	switch s := src.(type) {
	case FileSource:
		return "file " + s.Path
	case *WhisperXSource:
		return "whisperx " + s.Model()
	default:
		return fmt.Sprintf("%T", src)
	}
}
