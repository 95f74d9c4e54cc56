package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"courtside/internal/config"
	"courtside/internal/deps"
	"courtside/internal/media"
	"courtside/internal/notifications"
	"courtside/internal/overlay"
	"courtside/internal/pose"
	"courtside/internal/preflight"
	"courtside/internal/runstore"
	"courtside/internal/services"
	"courtside/internal/services/llm"
	"courtside/internal/transcript"
	"courtside/internal/workflow"
)

type analyzeOptions struct {
	players    int
	roles      []string
	languages  []string
	interval   float64
	transcript string
	outputDir  string
	noPDF      bool
	annotate   bool
	quiet      bool
	asJSON     bool
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Analyse a match video and write reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rc, err := buildRunConfig(cfg, args[0], opts, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.LLM.APIKey) == "" {
				return services.Wrap(services.ErrConfiguration, "config", "llm", "llm.api_key is not set (export COURTSIDE_LLM_API_KEY)", nil)
			}
			if err := deps.MissingRequired(preflight.CheckSystemDeps(cfg)); err != nil {
				return services.Wrap(services.ErrConfiguration, "config", "tools", "missing external tools (run courtside preflight)", err)
			}
			return runAnalysis(cmd, ctx, cfg, rc, opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.players, "players", 0, "Number of players on court (1 or 2)")
	flags.StringSliceVar(&opts.roles, "roles", nil, "Report audiences: coach, student, parent")
	flags.StringSliceVar(&opts.languages, "languages", nil, "Report language codes (en, hi, ta, te, kn)")
	flags.Float64Var(&opts.interval, "interval", 0, "Seconds between sampled frames")
	flags.StringVar(&opts.transcript, "transcript", "", "Use this transcript text file instead of transcribing audio")
	flags.StringVarP(&opts.outputDir, "out", "o", "", "Output directory (defaults to <paths.output_dir>/<video name>)")
	flags.BoolVar(&opts.noPDF, "no-pdf", false, "Skip PDF rendering")
	flags.BoolVar(&opts.annotate, "annotate", false, "Also write <video>_annotated.mp4 with tracked skeletons")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Hide the progress bar")
	flags.BoolVar(&opts.asJSON, "json", false, "Print the run summary as JSON")
	return cmd
}

// buildRunConfig layers changed CLI flags over configured defaults.
func buildRunConfig(cfg *config.Config, video string, opts analyzeOptions, changed func(string) bool) (config.RunConfig, error) {
	path, err := config.ExpandPath(strings.TrimSpace(video))
	if err != nil {
		return config.RunConfig{}, services.Wrap(services.ErrConfiguration, "config", "video", "resolve video path", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return config.RunConfig{}, services.Wrap(services.ErrConfiguration, "config", "video", "video not found", err)
	}
	if info.IsDir() {
		return config.RunConfig{}, services.Wrap(services.ErrConfiguration, "config", "video", path+" is a directory", nil)
	}

	rc := cfg.RunConfig(path)
	rc.OutputDir = filepath.Join(cfg.Paths.OutputDir, runDirName(path))
	if changed("players") {
		rc.PlayerCount = opts.players
	}
	if changed("roles") {
		rc.Roles = splitList(opts.roles, strings.ToLower)
	}
	if changed("languages") {
		rc.Languages = config.NormalizeLanguages(splitList(opts.languages, nil))
	}
	if changed("interval") {
		rc.SamplingInterval = time.Duration(opts.interval * float64(time.Second))
	}
	if changed("transcript") {
		expanded, err := config.ExpandPath(strings.TrimSpace(opts.transcript))
		if err != nil {
			return config.RunConfig{}, services.Wrap(services.ErrConfiguration, "config", "transcript", "resolve transcript path", err)
		}
		rc.TranscriptPath = expanded
	}
	if changed("out") {
		expanded, err := config.ExpandPath(strings.TrimSpace(opts.outputDir))
		if err != nil {
			return config.RunConfig{}, services.Wrap(services.ErrConfiguration, "config", "output", "resolve output path", err)
		}
		rc.OutputDir = expanded
	}
	if opts.noPDF {
		rc.RenderPDF = false
	}
	if changed("annotate") {
		rc.AnnotateVideo = opts.annotate
	}
	if err := rc.Validate(); err != nil {
		return config.RunConfig{}, err
	}
	return rc, nil
}

func runDirName(video string) string {
	name := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	if strings.TrimSpace(name) == "" {
		return "analysis"
	}
	return name
}

// splitList flattens comma-separated flag values, dropping blanks.
func splitList(values []string, transform func(string) string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if transform != nil {
				part = transform(part)
			}
			out = append(out, part)
		}
	}
	return out
}

func runAnalysis(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, rc config.RunConfig, opts analyzeOptions) error {
	logger, err := ctx.logger()
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := runstore.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pool := pose.NewPool(pose.PoolOptions{
		Size:        cfg.Pose.Workers,
		Command:     cfg.Pose.WorkerCommand,
		CallTimeout: time.Duration(cfg.Pose.CallTimeoutSeconds) * time.Second,
		Logger:      logger,
	})
	defer pool.Close()

	notifier := notifications.NewService(cfg, logger)
	defer notifier.Close()

	ffmpeg := cfg.Analysis.FFmpegBinary
	ffprobe := deps.ResolveFFprobe(ffmpeg, cfg.Analysis.FFprobeBinary)

	var bar *progressBar
	if !opts.quiet && !opts.asJSON && isTerminal(cmd.ErrOrStderr()) {
		bar = newProgressBar(cmd.ErrOrStderr())
	}
	depsCfg := workflow.Dependencies{
		Sources: func(video string) media.FrameSource {
			return media.NewFFmpegSource(video, ffmpeg, ffprobe)
		},
		Detector:  pool,
		Generator: llm.NewClient(llm.FromSettings(cfg.LLM)),
		Transcripts: func(run config.RunConfig) transcript.Source {
			return transcript.FromRun(cfg, run)
		},
		Store:    store,
		Notifier: notifier,
		Logger:   logger,
		Overlays: func(runCtx context.Context, path string, run config.RunConfig) overlay.Sink {
			return overlay.NewFFmpegWriter(runCtx, path, ffmpeg, run.SamplingInterval, run.MinKeypointConfidence)
		},
	}
	if bar != nil {
		depsCfg.Progress = bar.update
	}
	runner, err := workflow.NewRunner(depsCfg)
	if err != nil {
		return err
	}

	result, runErr := runner.Run(signalCtx, rc)
	if bar != nil {
		bar.finish()
	}
	if result == nil {
		return runErr
	}
	if opts.asJSON {
		if err := writeJSON(cmd, toResultJSON(result)); err != nil {
			return err
		}
	} else {
		renderResult(cmd.OutOrStdout(), result)
	}
	return runErr
}

type branchJSON struct {
	Report   string `json:"report"`
	Failed   bool   `json:"failed"`
	Attempts int    `json:"attempts"`
	Text     string `json:"text,omitempty"`
	PDF      string `json:"pdf,omitempty"`
	Error    string `json:"error,omitempty"`
}

type resultJSON struct {
	RunID         string       `json:"run_id"`
	Status        string       `json:"status"`
	OutputDir     string       `json:"output_dir"`
	Readme        string       `json:"readme,omitempty"`
	Annotated     string       `json:"annotated_video,omitempty"`
	Issued        int          `json:"issued"`
	Produced      int          `json:"produced"`
	Failed        int          `json:"failed"`
	FramesSampled int          `json:"frames_sampled"`
	FramesSkipped int          `json:"frames_skipped"`
	DetectionGaps int          `json:"detection_gaps"`
	PlayerMisses  int          `json:"player_misses"`
	DurationSecs  float64      `json:"duration_seconds"`
	Reports       []branchJSON `json:"reports"`
}

func toResultJSON(result *workflow.Result) resultJSON {
	out := resultJSON{
		RunID:         result.RunID,
		Status:        string(result.Status),
		OutputDir:     result.OutputDir,
		Readme:        result.ReadmePath,
		Annotated:     result.AnnotatedPath,
		Issued:        result.Issued,
		Produced:      result.Produced,
		Failed:        result.Failed,
		FramesSampled: result.FramesSampled,
		FramesSkipped: result.FramesSkipped,
		DetectionGaps: result.DetectionGaps,
		PlayerMisses:  result.Misses,
		DurationSecs:  result.Duration.Seconds(),
		Reports:       make([]branchJSON, 0, len(result.Branches)),
	}
	for _, b := range result.Branches {
		item := branchJSON{
			Report:   b.Request.Key(),
			Failed:   b.Failed,
			Attempts: b.Attempts,
			Text:     b.Paths.Text,
			PDF:      b.Paths.PDF,
		}
		if b.Err != nil {
			item.Error = b.Err.Error()
		}
		out.Reports = append(out.Reports, item)
	}
	return out
}

func renderResult(out io.Writer, result *workflow.Result) {
	fmt.Fprintf(out, "Run %s: %s\n", result.RunID, result.Status)
	fmt.Fprintf(out, "Frames: %d sampled, %d skipped, %d detection gaps, %d player misses\n",
		result.FramesSampled, result.FramesSkipped, result.DetectionGaps, result.Misses)
	fmt.Fprintf(out, "Reports: %d of %d written", result.Produced, result.Issued)
	if result.Failed > 0 {
		fmt.Fprintf(out, ", %d failed", result.Failed)
	}
	fmt.Fprintf(out, " in %s\n", formatDuration(result.Duration))
	if len(result.Branches) > 0 {
		rows := make([][]string, 0, len(result.Branches))
		for _, b := range result.Branches {
			status := "ok"
			file := relativeTo(result.OutputDir, b.Paths.Text)
			if b.Failed {
				status = "failed"
				if b.Err != nil && b.Paths.Text == "" {
					file = b.Err.Error()
				}
			}
			rows = append(rows, []string{b.Request.Key(), status, strconv.Itoa(b.Attempts), file})
		}
		fmt.Fprintln(out, renderTable("",
			[]string{"Report", "Status", "Attempts", "File"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
	}
	if result.ReadmePath != "" {
		fmt.Fprintf(out, "Index: %s\n", result.ReadmePath)
	}
	if result.AnnotatedPath != "" {
		fmt.Fprintf(out, "Annotated video: %s\n", result.AnnotatedPath)
	}
}

func relativeTo(base, path string) string {
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(base, path); err == nil {
		return rel
	}
	return path
}
