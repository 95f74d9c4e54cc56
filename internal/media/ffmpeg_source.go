package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"courtside/internal/media/ffprobe"
)

// FFmpegSource decodes a video file through an ffmpeg rawvideo RGB24 pipe.
type FFmpegSource struct {
	Path          string
	FFmpegBinary  string
	FFprobeBinary string

	probeOnce sync.Once
	probe     ffprobe.Result
	probeErr  error
}

// NewFFmpegSource returns a source for path using the named binaries.
func NewFFmpegSource(path, ffmpegBinary, ffprobeBinary string) *FFmpegSource {
	return &FFmpegSource{Path: path, FFmpegBinary: ffmpegBinary, FFprobeBinary: ffprobeBinary}
}

func (s *FFmpegSource) inspect(ctx context.Context) (ffprobe.Result, error) {
	s.probeOnce.Do(func() {
		s.probe, s.probeErr = ffprobe.Inspect(ctx, s.FFprobeBinary, s.Path)
	})
	return s.probe, s.probeErr
}

// Duration reports the container duration from ffprobe.
func (s *FFmpegSource) Duration(ctx context.Context) (time.Duration, error) {
	result, err := s.inspect(ctx)
	if err != nil {
		return 0, err
	}
	seconds := result.DurationSeconds()
	if seconds <= 0 || seconds != seconds {
		return 0, errors.New("duration unavailable")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// Open probes the video dimensions and starts an ffmpeg process emitting one
// frame per interval.
func (s *FFmpegSource) Open(ctx context.Context, interval time.Duration) (FrameReader, error) {
	result, err := s.inspect(ctx)
	if err != nil {
		return nil, err
	}
	video, ok := result.PrimaryVideo()
	if !ok {
		return nil, fmt.Errorf("%s: no decodable video stream", s.Path)
	}

	binary := strings.TrimSpace(s.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, ffmpegArgs(s.Path, interval)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	return &pipeReader{
		src:      bufio.NewReaderSize(stdout, 1<<20),
		width:    video.Width,
		height:   video.Height,
		interval: interval,
		wait: func() error {
			if err := cmd.Wait(); err != nil {
				return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
			}
			return nil
		},
		kill: func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		},
	}, nil
}

func ffmpegArgs(path string, interval time.Duration) []string {
	fps := strconv.FormatFloat(1/interval.Seconds(), 'f', -1, 64)
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", path,
		"-an", "-sn",
		"-vf", "fps=" + fps,
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"pipe:1",
	}
}

// pipeReader slices a raw RGB24 byte stream into frames. Close may run while
// Next is blocked; killing the process unblocks the pending read.
type pipeReader struct {
	src      io.Reader
	width    int
	height   int
	interval time.Duration
	index    int
	wait     func() error
	kill     func()

	waitOnce sync.Once
	waitErr  error
	killOnce sync.Once
}

func (r *pipeReader) Next() (RawFrame, error) {
	buf := make([]byte, r.width*r.height*3)
	n, err := io.ReadFull(r.src, buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if err := r.reap(); err != nil {
			return RawFrame{}, err
		}
		return RawFrame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Truncated tail: reported once as corrupt, the following read hits EOF.
		r.index++
		return RawFrame{}, fmt.Errorf("%w: short frame (%d of %d bytes)", ErrCorruptFrame, n, len(buf))
	default:
		return RawFrame{}, err
	}
	frame := RawFrame{
		Timestamp: float64(r.index) * r.interval.Seconds(),
		Width:     r.width,
		Height:    r.height,
		Pixels:    buf,
	}
	r.index++
	return frame, nil
}

func (r *pipeReader) reap() error {
	r.waitOnce.Do(func() {
		if r.wait != nil {
			r.waitErr = r.wait()
		}
	})
	return r.waitErr
}

func (r *pipeReader) Close() error {
	r.killOnce.Do(func() {
		if r.kill != nil {
			r.kill()
		}
	})
	_ = r.reap()
	return nil
}
