package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"

	"courtside/internal/artifact"
	"courtside/internal/config"
	"courtside/internal/logging"
	"courtside/internal/media"
	"courtside/internal/notifications"
	"courtside/internal/overlay"
	"courtside/internal/pose"
	"courtside/internal/report"
	"courtside/internal/runstore"
	"courtside/internal/services"
	"courtside/internal/transcript"
)

// SourceFactory opens the frame source for a video path.
type SourceFactory func(video string) media.FrameSource

// TranscriptFactory picks the transcript source for a run; nil means none.
type TranscriptFactory func(run config.RunConfig) transcript.Source

// OverlayFactory opens the annotated-video sink for a run writing to path.
type OverlayFactory func(ctx context.Context, path string, run config.RunConfig) overlay.Sink

// Dependencies are the capabilities a Runner drives. Sources, Detector and
// Generator are required.
type Dependencies struct {
	Sources     SourceFactory
	Detector    pose.Detector
	Generator   report.Generator
	Transcripts TranscriptFactory
	Store       *runstore.Store
	Notifier    notifications.Service
	Logger      *slog.Logger
	// Overlays is used when a run asks for an annotated video.
	Overlays OverlayFactory
	// BranchWorkers bounds concurrently running report branches per run.
	// Zero uses runtime.NumCPU().
	BranchWorkers int
	// Progress, when set, receives progress snapshots. It must not block.
	Progress func(Progress)
}

// Runner executes analysis runs.
type Runner struct {
	deps   Dependencies
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
}

// NewRunner validates deps and returns a Runner.
func NewRunner(deps Dependencies) (*Runner, error) {
	switch {
	case deps.Sources == nil:
		return nil, errors.New("workflow: frame source factory required")
	case deps.Detector == nil:
		return nil, errors.New("workflow: pose detector required")
	case deps.Generator == nil:
		return nil, errors.New("workflow: report generator required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(nil, nil)
	}
	if deps.BranchWorkers <= 0 {
		deps.BranchWorkers = runtime.NumCPU()
	}
	return &Runner{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "workflow"),
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// BranchOutcome is the result of one report branch.
type BranchOutcome struct {
	Request  report.Request
	Paths    artifact.Paths
	Attempts int
	Failed   bool
	Err      error
}

// Result summarizes a finished run.
type Result struct {
	RunID         string
	Status        runstore.Status
	OutputDir     string
	ReadmePath    string
	AnnotatedPath string
	Issued        int
	Produced      int
	Failed        int
	FramesSampled int
	FramesSkipped int
	DetectionGaps int
	Misses        int
	TranscriptLen int
	Branches      []BranchOutcome
	Transitions   []runstore.Status
	Duration      time.Duration
}

// Run analyses rc.VideoSource and writes reports into rc.OutputDir. The
// returned Result is non-nil whenever a run was started, including failed
// runs; the error explains why the run failed. Configuration errors are
// returned before any run is created.
func (r *Runner) Run(ctx context.Context, rc config.RunConfig) (*Result, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	start := r.now()
	runID := r.newID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	result := &Result{RunID: runID, OutputDir: rc.OutputDir, Issued: rc.RequestCount()}
	state := newRunState(runID, r.deps.Store, r.logger)
	defer func() {
		result.Status = state.current()
		result.Transitions = state.visited()
		result.Duration = r.now().Sub(start)
	}()

	if r.deps.Store != nil {
		if _, err := r.deps.Store.CreateRun(ctx, runstore.Run{
			ID:        runID,
			VideoPath: rc.VideoSource,
			OutputDir: rc.OutputDir,
			Players:   rc.PlayerCount,
			Roles:     rc.Roles,
			Languages: rc.Languages,
		}); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	logger.Info("analysis run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("video", rc.VideoSource),
		logging.Int("players", rc.PlayerCount),
		logging.Int("requests", result.Issued),
	)
	r.notify(ctx, notifications.EventRunStarted, notifications.Payload{
		"runID":   runID,
		"video":   rc.VideoSource,
		"reports": result.Issued,
	})

	writer, err := artifact.NewWriter(artifact.Options{
		OutputDir: rc.OutputDir,
		Video:     rc.VideoSource,
		RenderPDF: rc.RenderPDF,
		Logger:    r.deps.Logger,
	})
	if err != nil {
		return result, r.failRun(ctx, state, result, "init",
			services.Wrap(services.ErrConfiguration, "init", "prepare output", "cannot prepare output directory", err))
	}

	transcriptCh := r.loadTranscript(ctx, rc)

	analysis, err := r.analyze(ctx, rc, state)
	result.FramesSampled = analysis.sampled
	result.FramesSkipped = analysis.skipped
	result.DetectionGaps = analysis.gaps
	result.Misses = analysis.misses
	result.AnnotatedPath = analysis.annotated
	r.recordSummary(ctx, runID, analysis)
	if err != nil {
		return result, r.failRun(ctx, state, result, string(state.current()), err)
	}

	text, err := awaitTranscript(ctx, transcriptCh)
	if err != nil {
		return result, r.failRun(ctx, state, result, string(state.current()), err)
	}
	result.TranscriptLen = len(text)

	if err := state.advance(ctx, runstore.StatusSynthesizing, ""); err != nil {
		return result, r.failRun(ctx, state, result, "synthesizing", err)
	}
	outcomes := r.fanOut(ctx, rc, analysis.metrics, text, writer)
	result.Branches = outcomes
	for _, o := range outcomes {
		if o.Failed {
			result.Failed++
		} else {
			result.Produced++
		}
	}
	if result.Produced+result.Failed != result.Issued {
		logging.ErrorWithContext(logger, "branch accounting mismatch", "branch_accounting",
			logging.Int("issued", result.Issued),
			logging.Int("produced", result.Produced),
			logging.Int("failed", result.Failed),
		)
	}

	if rc.WriteReadme {
		r.writeReadme(ctx, writer, rc, result)
	}

	if err := ctx.Err(); err != nil {
		return result, r.failRun(ctx, state, result, "synthesizing", err)
	}
	if result.Issued > 0 && result.Produced == 0 {
		return result, r.failRun(ctx, state, result, "synthesizing",
			services.Wrap(services.ErrGeneration, "synthesizing", "fan out",
				fmt.Sprintf("all %d report branches failed", result.Issued), firstBranchError(outcomes)))
	}

	if err := state.advance(ctx, runstore.StatusDone, ""); err != nil {
		logging.WarnWithContext(logger, "run status not persisted", "run_status_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check run store database access"),
			logging.String(logging.FieldImpact, "runs list may show a stale status"),
		)
	}
	logger.Info("analysis run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("produced", result.Produced),
		logging.Int("failed", result.Failed),
		logging.Duration("duration", r.now().Sub(start)),
	)
	r.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
		"runID":    runID,
		"video":    rc.VideoSource,
		"reports":  result.Issued,
		"failed":   result.Failed,
		"duration": r.now().Sub(start),
	})
	return result, nil
}

func (r *Runner) recordSummary(ctx context.Context, runID string, a analysis) {
	if r.deps.Store == nil {
		return
	}
	err := r.deps.Store.RecordSummary(context.WithoutCancel(ctx), runID, runstore.Summary{
		FramesSampled: a.sampled,
		FramesSkipped: a.skipped,
		DetectionGaps: a.gaps,
		PlayerMisses:  a.misses,
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "run summary not persisted", "run_summary_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check run store database access"),
		)
	}
}

func (r *Runner) writeReadme(ctx context.Context, writer *artifact.Writer, rc config.RunConfig, result *Result) {
	status := "complete"
	switch {
	case ctx.Err() != nil:
		status = "cancelled"
	case result.Produced == 0 && result.Issued > 0:
		status = "failed"
	case result.Failed > 0:
		status = "complete with failures"
	}
	path, err := writer.WriteReadme(context.WithoutCancel(ctx), artifact.RunInfo{
		RunID:       result.RunID,
		Video:       rc.VideoSource,
		Players:     rc.PlayerCount,
		Roles:       rc.Roles,
		Languages:   rc.Languages,
		GeneratedAt: r.now(),
		Status:      status,
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "run index not written", "readme_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check output directory permissions"),
			logging.String(logging.FieldImpact, "reports are written but README.txt is missing"),
		)
		return
	}
	result.ReadmePath = path
}

func firstBranchError(outcomes []BranchOutcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}
