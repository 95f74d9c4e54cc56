package overlay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"courtside/internal/media"
	"courtside/internal/pose"
)

// Sink receives every sampled frame together with its tracked poses.
type Sink interface {
	Add(frame media.Frame, poses []pose.PoseFrame) error
	// Close finishes the output. It is safe to call on a sink that never
	// received a frame.
	Close() error
}

// encoder is the write side of a running ffmpeg process.
type encoder struct {
	stdin io.WriteCloser
	wait  func() error
}

// FFmpegWriter encodes annotated frames into an H.264 MP4. The encoder is
// started on the first frame, whose dimensions fix the output size.
type FFmpegWriter struct {
	Path          string
	Binary        string
	Interval      time.Duration
	MinConfidence float64

	ctx    context.Context
	start  func(args []string) (*encoder, error)
	enc    *encoder
	width  int
	height int
	frames int
}

// NewFFmpegWriter returns a writer for path. ctx bounds the encoder process.
func NewFFmpegWriter(ctx context.Context, path, binary string, interval time.Duration, minConfidence float64) *FFmpegWriter {
	w := &FFmpegWriter{
		Path:          path,
		Binary:        binary,
		Interval:      interval,
		MinConfidence: minConfidence,
		ctx:           ctx,
	}
	w.start = w.exec
	return w
}

// Frames returns the number of frames written so far.
func (w *FFmpegWriter) Frames() int { return w.frames }

func (w *FFmpegWriter) Add(frame media.Frame, poses []pose.PoseFrame) error {
	if w.enc == nil {
		if frame.Width <= 0 || frame.Height <= 0 {
			return fmt.Errorf("annotate: invalid frame size %dx%d", frame.Width, frame.Height)
		}
		if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
			return fmt.Errorf("annotate: ensure output dir: %w", err)
		}
		enc, err := w.start(encodeArgs(w.Path, frame.Width, frame.Height, w.Interval))
		if err != nil {
			return err
		}
		w.enc, w.width, w.height = enc, frame.Width, frame.Height
	}
	if frame.Width != w.width || frame.Height != w.height {
		return fmt.Errorf("annotate: frame %d is %dx%d, encoder expects %dx%d",
			frame.Index, frame.Width, frame.Height, w.width, w.height)
	}
	if _, err := w.enc.stdin.Write(Draw(frame, poses, w.MinConfidence)); err != nil {
		return fmt.Errorf("annotate: write frame %d: %w", frame.Index, err)
	}
	w.frames++
	return nil
}

func (w *FFmpegWriter) Close() error {
	if w.enc == nil {
		return nil
	}
	enc := w.enc
	w.enc = nil
	return errors.Join(enc.stdin.Close(), enc.wait())
}

func (w *FFmpegWriter) exec(args []string) (*encoder, error) {
	binary := strings.TrimSpace(w.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("annotate: ffmpeg stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("annotate: start ffmpeg: %w", err)
	}
	return &encoder{
		stdin: stdin,
		wait: func() error {
			if err := cmd.Wait(); err != nil {
				return fmt.Errorf("annotate: ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
			}
			return nil
		},
	}, nil
}

func encodeArgs(path string, width, height int, interval time.Duration) []string {
	fps := "1"
	if interval > 0 {
		fps = strconv.FormatFloat(1/interval.Seconds(), 'f', -1, 64)
	}
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fps,
		"-i", "pipe:0",
		"-an",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		// yuv420p needs even dimensions.
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		path,
	}
}
