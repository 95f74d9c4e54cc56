package workflow

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"courtside/internal/artifact"
	"courtside/internal/config"
	"courtside/internal/logging"
	"courtside/internal/media"
	"courtside/internal/metrics"
	"courtside/internal/overlay"
	"courtside/internal/pose"
	"courtside/internal/runstore"
	"courtside/internal/services"
	"courtside/internal/transcript"
)

// analysis is the output of stages one to three.
type analysis struct {
	metrics map[int]metrics.PlayerMetrics
	sampled int
	skipped int
	gaps    int
	misses  int
	// annotated is the annotated video path, empty when none was written.
	annotated string
}

// analyze runs sampling, pose extraction and aggregation as a pipeline and
// finalizes the aggregator once the sampler is exhausted and every batch has
// been applied.
func (r *Runner) analyze(ctx context.Context, rc config.RunConfig, state *runState) (analysis, error) {
	var out analysis
	if err := state.advance(ctx, runstore.StatusSampling, ""); err != nil {
		return out, err
	}

	scope := r.beginStage(ctx, "analysis")
	ctx = scope.ctx

	source := r.deps.Sources(rc.VideoSource)
	sampler := media.NewSampler(source, media.SamplerOptions{
		Interval:            rc.SamplingInterval,
		MaxConsecutiveSkips: rc.MaxConsecutiveSkips,
		StallTimeout:        rc.StallTimeout,
		Logger:              r.deps.Logger,
	})
	extractor := pose.NewExtractor(r.deps.Detector, rc.PlayerCount, r.deps.Logger)
	aggregator := metrics.NewAggregator(metrics.Options{
		Players:         rc.PlayerCount,
		MinConfidence:   rc.MinKeypointConfidence,
		EventsPerMetric: rc.EventsPerMetric,
	})
	estimate := r.estimateFrames(ctx, source, rc)
	annotations := r.openOverlay(ctx, rc)

	g, pipeCtx := errgroup.WithContext(ctx)
	var sampled atomic.Int64
	frames := make(chan media.Frame, 1)
	batches := make(chan []pose.PoseFrame, 1)

	g.Go(func() error {
		defer close(frames)
		progressLog := logging.NewProgressSampler(10)
		for frame, err := range sampler.Frames(pipeCtx) {
			if err != nil {
				return err
			}
			select {
			case frames <- frame:
				n := sampled.Add(1)
				r.progress(Progress{Stage: StageSampling, Frames: n, EstimatedFrames: estimate})
				if estimate > 0 && progressLog.ShouldLog(float64(n)*100/float64(estimate), StageSampling) {
					scope.logger.Debug("sampling progress",
						logging.String(logging.FieldEventType, "sampling_progress"),
						logging.Int64("frames_sampled", n),
						logging.Int64("frames_estimated", estimate),
					)
				}
			case <-pipeCtx.Done():
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(batches)
		first := true
		for frame := range frames {
			batch, err := extractor.Extract(pipeCtx, frame)
			if err != nil {
				return err
			}
			if first {
				first = false
				if err := state.advance(ctx, runstore.StatusPoseExtraction, ""); err != nil {
					return err
				}
			}
			annotations.add(pipeCtx, frame, batch)
			select {
			case batches <- batch:
			case <-pipeCtx.Done():
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		for batch := range batches {
			if err := aggregator.Update(batch); err != nil {
				return services.Wrap(services.ErrMedia, "aggregating", "update", "metrics update rejected", err)
			}
		}
		return nil
	})
	stageErr := g.Wait()
	out.annotated = annotations.close(ctx)

	out.sampled = int(sampled.Load())
	out.skipped = int(sampler.Skipped())
	out.gaps = int(extractor.Gaps())
	out.misses = int(extractor.Misses())

	if err := ctx.Err(); err != nil {
		scope.fail(err)
		return out, err
	}
	if stageErr != nil {
		scope.fail(stageErr)
		return out, stageErr
	}

	if err := state.advance(ctx, runstore.StatusAggregating, ""); err != nil {
		scope.fail(err)
		return out, err
	}
	out.metrics = aggregator.Finalize()
	scope.complete(
		logging.Int("frames_sampled", out.sampled),
		logging.Int("frames_skipped", out.skipped),
		logging.Int("detection_gaps", out.gaps),
		logging.Int("player_misses", out.misses),
	)
	return out, nil
}

// annotationSink wraps an overlay.Sink so encoder failures only disable the
// annotated video.
type annotationSink struct {
	sink   overlay.Sink
	path   string
	failed bool
	logger *slog.Logger
}

func (r *Runner) openOverlay(ctx context.Context, rc config.RunConfig) *annotationSink {
	a := &annotationSink{logger: r.logger}
	if !rc.AnnotateVideo || r.deps.Overlays == nil {
		return a
	}
	a.path = filepath.Join(rc.OutputDir, artifact.VideoStem(rc.VideoSource)+"_annotated.mp4")
	a.sink = r.deps.Overlays(ctx, a.path, rc)
	return a
}

func (a *annotationSink) add(ctx context.Context, frame media.Frame, batch []pose.PoseFrame) {
	if a.sink == nil || a.failed {
		return
	}
	if err := a.sink.Add(frame, batch); err != nil {
		a.fail(ctx, err)
	}
}

// close finishes the video and returns its path, or "" when nothing usable
// was written.
func (a *annotationSink) close(ctx context.Context) string {
	if a.sink == nil {
		return ""
	}
	if err := a.sink.Close(); err != nil && !a.failed {
		a.fail(ctx, err)
	}
	if a.failed || ctx.Err() != nil {
		return ""
	}
	return a.path
}

func (a *annotationSink) fail(ctx context.Context, err error) {
	a.failed = true
	logging.WarnWithContext(logging.WithContext(ctx, a.logger), "annotated video disabled", "annotation_failed",
		logging.String("path", a.path),
		logging.Error(err),
		logging.String(logging.FieldImpact, "reports are unaffected; no annotated video for this run"),
		logging.String(logging.FieldErrorHint, "check that ffmpeg was built with libx264"),
	)
}

func (r *Runner) estimateFrames(ctx context.Context, source media.FrameSource, rc config.RunConfig) int64 {
	prober, ok := source.(media.Prober)
	if !ok || r.deps.Progress == nil || rc.SamplingInterval <= 0 {
		return 0
	}
	d, err := prober.Duration(ctx)
	if err != nil || d <= 0 {
		return 0
	}
	return int64(d/rc.SamplingInterval) + 1
}

type transcriptResult struct {
	text string
	err  error
}

// loadTranscript fetches the transcript alongside analysis. The channel
// receives exactly one result; its error is non-nil only on cancellation.
func (r *Runner) loadTranscript(ctx context.Context, rc config.RunConfig) <-chan transcriptResult {
	ch := make(chan transcriptResult, 1)
	var src transcript.Source
	if r.deps.Transcripts != nil {
		src = r.deps.Transcripts(rc)
	}
	if src == nil {
		ch <- transcriptResult{}
		return ch
	}
	go func() {
		text, err := transcript.Load(services.WithStage(ctx, "transcript"), src, rc.VideoSource, r.deps.Logger)
		ch <- transcriptResult{text: text, err: err}
	}()
	return ch
}

func awaitTranscript(ctx context.Context, ch <-chan transcriptResult) (string, error) {
	select {
	case res := <-ch:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
