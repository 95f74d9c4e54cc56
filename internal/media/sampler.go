package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"courtside/internal/logging"
	"courtside/internal/services"
)

// SamplerOptions configures a Sampler.
type SamplerOptions struct {
	Interval            time.Duration
	MaxConsecutiveSkips int
	StallTimeout        time.Duration
	Logger              *slog.Logger
}

// Sampler lazily yields frames from a FrameSource.
type Sampler struct {
	source  FrameSource
	opts    SamplerOptions
	logger  *slog.Logger
	skipped atomic.Int64
}

// NewSampler constructs a sampler over source.
func NewSampler(source FrameSource, opts SamplerOptions) *Sampler {
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = 30 * time.Second
	}
	return &Sampler{
		source: source,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "sampler"),
	}
}

// Skipped returns the number of corrupt frames skipped across all passes.
func (s *Sampler) Skipped() int64 {
	return s.skipped.Load()
}

type readResult struct {
	frame RawFrame
	err   error
}

// Frames returns a single-use sequence over one decoding pass. Calling Frames
// again re-opens the source from the beginning. The sequence ends after the
// last frame; a fatal failure is yielded once as a non-nil error tagged with
// services.ErrMedia, after which the sequence stops.
func (s *Sampler) Frames(ctx context.Context) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		if s.source == nil {
			yield(Frame{}, services.Wrap(services.ErrMedia, "sampling", "open", "no frame source configured", nil))
			return
		}
		if s.opts.Interval <= 0 {
			yield(Frame{}, services.Wrap(services.ErrMedia, "sampling", "open", "sampling interval must be positive", nil))
			return
		}

		passCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		reader, err := s.source.Open(passCtx, s.opts.Interval)
		if err != nil {
			yield(Frame{}, services.Wrap(services.ErrMedia, "sampling", "open", "cannot open video", err))
			return
		}

		results := make(chan readResult)
		done := make(chan struct{})
		go func() {
			defer close(results)
			for {
				frame, err := reader.Next()
				select {
				case results <- readResult{frame: frame, err: err}:
				case <-done:
					return
				}
				if err != nil && !errors.Is(err, ErrCorruptFrame) {
					return
				}
			}
		}()
		defer func() {
			close(done)
			cancel()
			_ = reader.Close()
		}()

		index := 0
		lastTimestamp := -1.0
		consecutive := 0
		for {
			timer := time.NewTimer(s.opts.StallTimeout)
			var res readResult
			var ok bool
			select {
			case <-ctx.Done():
				timer.Stop()
				yield(Frame{}, ctx.Err())
				return
			case <-timer.C:
				yield(Frame{}, services.Wrap(services.ErrMedia, "sampling", "decode",
					fmt.Sprintf("decoder stalled for %s", s.opts.StallTimeout), services.ErrTimeout))
				return
			case res, ok = <-results:
				timer.Stop()
			}
			if !ok {
				return
			}

			switch {
			case res.err == nil:
			case errors.Is(res.err, io.EOF):
				return
			case errors.Is(res.err, ErrCorruptFrame):
				if !s.skip(ctx, &consecutive, res.err) {
					yield(Frame{}, services.Wrap(services.ErrMedia, "sampling", "decode",
						fmt.Sprintf("%d consecutive corrupt frames", consecutive), res.err))
					return
				}
				continue
			default:
				if ctx.Err() != nil {
					yield(Frame{}, ctx.Err())
					return
				}
				yield(Frame{}, services.Wrap(services.ErrMedia, "sampling", "decode", "decoder failed", res.err))
				return
			}

			if !validDimensions(res.frame) || res.frame.Timestamp <= lastTimestamp {
				reason := fmt.Errorf("%w: timestamp %.3f after %.3f or bad dimensions", ErrCorruptFrame, res.frame.Timestamp, lastTimestamp)
				if !s.skip(ctx, &consecutive, reason) {
					yield(Frame{}, services.Wrap(services.ErrMedia, "sampling", "decode",
						fmt.Sprintf("%d consecutive corrupt frames", consecutive), reason))
					return
				}
				continue
			}

			consecutive = 0
			lastTimestamp = res.frame.Timestamp
			frame := Frame{
				Index:     index,
				Timestamp: res.frame.Timestamp,
				Width:     res.frame.Width,
				Height:    res.frame.Height,
				Pixels:    res.frame.Pixels,
			}
			index++
			if !yield(frame, nil) {
				return
			}
		}
	}
}

// skip records a corrupt frame and reports whether sampling may continue.
func (s *Sampler) skip(ctx context.Context, consecutive *int, cause error) bool {
	*consecutive++
	s.skipped.Add(1)
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "skipping corrupt frame", "frame_skipped",
		logging.Int("consecutive", *consecutive),
		logging.Error(cause),
		logging.String(logging.FieldImpact, "frame excluded from pose extraction"),
		logging.String(logging.FieldErrorHint, "re-encode the video if many frames are skipped"),
	)
	return *consecutive <= s.opts.MaxConsecutiveSkips
}
