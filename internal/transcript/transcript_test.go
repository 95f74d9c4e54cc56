package transcript_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"courtside/internal/services"
	"courtside/internal/testsupport"
	"courtside/internal/transcript"
)

func TestFileSourceTrimsContents(t *testing.T) {
	path := testsupport.WriteTranscript(t, t.TempDir(), "\n  Good rally. Watch the backhand.  \n")
	got, err := transcript.FileSource{Path: path}.Transcript(context.Background(), "ignored.mp4")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if got != "Good rally. Watch the backhand." {
		t.Fatalf("unexpected transcript %q", got)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := transcript.FileSource{Path: filepath.Join(t.TempDir(), "missing.txt")}.Transcript(context.Background(), "")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

type call struct {
	name string
	args []string
}

func fakeWhisperX(t *testing.T, payload string, calls *[]call) transcript.CommandRunner {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) error {
		*calls = append(*calls, call{name: name, args: args})
		if name != "uvx" {
			return nil
		}
		idx := slices.Index(args, "--output_dir")
		if idx < 0 || idx+1 >= len(args) {
			t.Fatalf("missing --output_dir in %v", args)
		}
		return os.WriteFile(filepath.Join(args[idx+1], "audio.json"), []byte(payload), 0o644)
	}
}

func TestWhisperXJoinsSegments(t *testing.T) {
	workDir := t.TempDir()
	video := testsupport.WriteVideo(t, filepath.Join(t.TempDir(), "final.mp4"), 128)

	src := transcript.NewWhisperX(transcript.WhisperXConfig{Language: "en", FFmpegBinary: "/opt/ffmpeg", WorkDir: workDir})
	var calls []call
	src.WithCommandRunner(fakeWhisperX(t, `{"segments":[{"text":" Nice smash "},{"text":""},{"text":"Move your feet."}]}`, &calls))

	got, err := src.Transcript(context.Background(), video)
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	if got != "Nice smash Move your feet." {
		t.Fatalf("unexpected transcript %q", got)
	}
	if len(calls) != 2 {
		t.Fatalf("expected ffmpeg then uvx, got %d calls", len(calls))
	}
	if calls[0].name != "/opt/ffmpeg" || !slices.Contains(calls[0].args, "16000") || !slices.Contains(calls[0].args, video) {
		t.Fatalf("unexpected ffmpeg call %+v", calls[0])
	}
	joined := strings.Join(calls[1].args, " ")
	for _, want := range []string{"whisperx", "--model large-v3", "--language en", "--device cpu", "--output_format json"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("uvx args missing %q: %s", want, joined)
		}
	}
}

func TestWhisperXCUDAArgs(t *testing.T) {
	src := transcript.NewWhisperX(transcript.WhisperXConfig{Model: "large-v3-turbo", CUDAEnabled: true, WorkDir: t.TempDir()})
	var calls []call
	src.WithCommandRunner(fakeWhisperX(t, `{"segments":[]}`, &calls))
	if _, err := src.Transcript(context.Background(), "match.mp4"); err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	joined := strings.Join(calls[1].args, " ")
	if !strings.Contains(joined, "--device cuda") || !strings.Contains(joined, "--extra-index-url") || !strings.Contains(joined, "--model large-v3-turbo") {
		t.Fatalf("unexpected cuda args: %s", joined)
	}
	if strings.Contains(joined, "--language") {
		t.Fatalf("language flag should be omitted when unset: %s", joined)
	}
}

func TestWhisperXToolFailure(t *testing.T) {
	src := transcript.NewWhisperX(transcript.WhisperXConfig{WorkDir: t.TempDir()})
	src.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("exit status 1")
	})
	_, err := src.Transcript(context.Background(), "match.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestWhisperXTimeout(t *testing.T) {
	src := transcript.NewWhisperX(transcript.WhisperXConfig{WorkDir: t.TempDir(), Timeout: 20 * time.Millisecond})
	src.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	_, err := src.Transcript(context.Background(), "match.mp4")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestWhisperXBadOutput(t *testing.T) {
	src := transcript.NewWhisperX(transcript.WhisperXConfig{WorkDir: t.TempDir()})
	var calls []call
	src.WithCommandRunner(fakeWhisperX(t, `not json`, &calls))
	if _, err := src.Transcript(context.Background(), "match.mp4"); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

type failingSource struct{ err error }

func (f failingSource) Transcript(context.Context, string) (string, error) { return "", f.err }

func TestLoadIsNonFatal(t *testing.T) {
	text, err := transcript.Load(context.Background(), failingSource{err: errors.New("boom")}, "v.mp4", nil)
	if err != nil || text != "" {
		t.Fatalf("expected empty transcript and nil error, got %q, %v", text, err)
	}
	text, err = transcript.Load(context.Background(), nil, "v.mp4", nil)
	if err != nil || text != "" {
		t.Fatalf("nil source: got %q, %v", text, err)
	}
}

func TestLoadReturnsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := transcript.Load(ctx, failingSource{err: context.Canceled}, "v.mp4", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFromRunPrefersFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	run := cfg.RunConfig("v.mp4")
	run.TranscriptPath = "/tmp/t.txt"
	run.TranscriptEnabled = true
	if src, ok := transcript.FromRun(cfg, run).(transcript.FileSource); !ok || src.Path != "/tmp/t.txt" {
		t.Fatalf("expected file source, got %#v", transcript.FromRun(cfg, run))
	}
	run.TranscriptPath = ""
	if _, ok := transcript.FromRun(cfg, run).(*transcript.WhisperXSource); !ok {
		t.Fatal("expected whisperx source when enabled")
	}
	run.TranscriptEnabled = false
	if src := transcript.FromRun(cfg, run); src != nil {
		t.Fatalf("expected nil source, got %#v", src)
	}
}
