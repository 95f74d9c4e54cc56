package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"courtside/internal/services"
)

// WhisperX invocation constants.
const (
	whisperXCommand        = "uvx"
	whisperXPackage        = "whisperx"
	whisperXDefaultModel   = "large-v3"
	whisperXCUDAIndexURL   = "https://download.pytorch.org/whl/cu128"
	whisperXPypiIndexURL   = "https://pypi.org/simple"
	whisperXBatchSize      = "4"
	whisperXChunkSize      = "15"
	whisperXVADMethod      = "silero"
	whisperXOutputFormat   = "json"
	whisperXCPUDevice      = "cpu"
	whisperXCUDADevice     = "cuda"
	whisperXCPUComputeType = "float32"
	audioFileName          = "audio.wav"
)

// WhisperXConfig captures runtime settings for WhisperX transcription.
type WhisperXConfig struct {
	// Model is the WhisperX model name; empty selects large-v3.
	Model        string
	CUDAEnabled  bool
	Language     string
	Timeout      time.Duration
	FFmpegBinary string
	// WorkDir holds intermediate audio and JSON output. Empty uses a
	// temporary directory removed after each call.
	WorkDir string
}

// CommandRunner executes an external command. It exists for tests.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// WhisperXSource transcribes a video's audio with WhisperX run through uvx.
type WhisperXSource struct {
	cfg    WhisperXConfig
	runner CommandRunner
}

// NewWhisperX constructs a WhisperX source.
func NewWhisperX(cfg WhisperXConfig) *WhisperXSource {
	if strings.TrimSpace(cfg.FFmpegBinary) == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	return &WhisperXSource{cfg: cfg, runner: runCommand}
}

// WithCommandRunner replaces the command runner.
func (w *WhisperXSource) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		w.runner = runner
	}
}

// Model returns the configured model name.
func (w *WhisperXSource) Model() string {
	if model := strings.TrimSpace(w.cfg.Model); model != "" {
		return model
	}
	return whisperXDefaultModel
}

// Transcript extracts mono 16 kHz audio from video, runs WhisperX over it
// and joins the resulting segment texts.
func (w *WhisperXSource) Transcript(ctx context.Context, video string) (string, error) {
	if strings.TrimSpace(video) == "" {
		return "", services.Wrap(services.ErrConfiguration, "transcript", "whisperx", "video path required", nil)
	}
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	workDir := w.cfg.WorkDir
	if workDir == "" {
		tmp, err := os.MkdirTemp("", "courtside-whisperx-")
		if err != nil {
			return "", fmt.Errorf("whisperx: create work dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		workDir = tmp
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("whisperx: ensure work dir: %w", err)
	}

	audio := filepath.Join(workDir, audioFileName)
	if err := w.runner(ctx, w.cfg.FFmpegBinary, extractArgs(video, audio)...); err != nil {
		return "", w.wrap(ctx, "extract audio", err)
	}
	if err := w.runner(ctx, whisperXCommand, w.buildArgs(audio, workDir)...); err != nil {
		return "", w.wrap(ctx, "transcribe", err)
	}
	text, err := loadTranscriptText(filepath.Join(workDir, strings.TrimSuffix(audioFileName, filepath.Ext(audioFileName))+".json"))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcript", "whisperx", "unable to read whisperx output", err)
	}
	return text, nil
}

func (w *WhisperXSource) wrap(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "transcript", op, fmt.Sprintf("exceeded %s", w.cfg.Timeout), err)
	}
	return services.Wrap(services.ErrExternalTool, "transcript", op, "", err)
}

func extractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

func (w *WhisperXSource) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 24)
	if w.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", whisperXCUDAIndexURL,
			"--extra-index-url", whisperXPypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", whisperXPypiIndexURL)
	}
	args = append(args,
		whisperXPackage,
		source,
		"--model", w.Model(),
		"--batch_size", whisperXBatchSize,
		"--chunk_size", whisperXChunkSize,
		"--output_dir", outputDir,
		"--output_format", whisperXOutputFormat,
		"--vad_method", whisperXVADMethod,
	)
	if lang := strings.ToLower(strings.TrimSpace(w.cfg.Language)); len(lang) == 2 {
		args = append(args, "--language", lang)
	}
	if w.cfg.CUDAEnabled {
		args = append(args, "--device", whisperXCUDADevice)
	} else {
		args = append(args, "--device", whisperXCPUDevice, "--compute_type", whisperXCPUComputeType)
	}
	return args
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if name == whisperXCommand && os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

type segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []segment `json:"segments"`
}

func loadTranscriptText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("parse whisperx json: %w", err)
	}
	parts := make([]string, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
