package overlay

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"courtside/internal/media"
	"courtside/internal/pose"
)

func blankFrame(index, w, h int) media.Frame {
	return media.Frame{Index: index, Width: w, Height: h, Pixels: make([]byte, w*h*3)}
}

func pixel(pix []byte, w, x, y int) RGB {
	i := (y*w + x) * 3
	return RGB{pix[i], pix[i+1], pix[i+2]}
}

func TestDrawPaintsSkeletonInPlayerColour(t *testing.T) {
	frame := blankFrame(0, 21, 21)
	pf := pose.PoseFrame{Player: 1, Keypoints: map[pose.Landmark]pose.Keypoint{
		pose.LeftShoulder: {Landmark: pose.LeftShoulder, X: 0, Y: 0.5, Confidence: 0.9},
		pose.LeftElbow:    {Landmark: pose.LeftElbow, X: 1, Y: 0.5, Confidence: 0.9},
		pose.LeftWrist:    {Landmark: pose.LeftWrist, X: 0.5, Y: 0, Confidence: 0.1},
	}}

	out := Draw(frame, []pose.PoseFrame{pf}, 0.5)
	if got := pixel(out, 21, 10, 10); got != PlayerColors[1] {
		t.Fatalf("expected bone midpoint in player colour, got %v", got)
	}
	if got := pixel(out, 21, 10, 0); got != (RGB{}) {
		t.Fatalf("expected low-confidence wrist left out, got %v", got)
	}
	if !bytes.Equal(frame.Pixels, make([]byte, len(frame.Pixels))) {
		t.Fatal("Draw must not modify the source frame")
	}
}

func TestDrawSkipsMisses(t *testing.T) {
	frame := blankFrame(0, 8, 8)
	pf := pose.PoseFrame{Miss: true, Keypoints: map[pose.Landmark]pose.Keypoint{
		pose.Nose: {Landmark: pose.Nose, X: 0.5, Y: 0.5, Confidence: 1},
	}}
	if out := Draw(frame, []pose.PoseFrame{pf}, 0); !bytes.Equal(out, frame.Pixels) {
		t.Fatal("expected missed slot to leave the frame untouched")
	}
}

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestFFmpegWriterStartsEncoderOnFirstFrame(t *testing.T) {
	out := filepath.Join(t.TempDir(), "annotated", "final_annotated.mp4")
	w := NewFFmpegWriter(t.Context(), out, "ffmpeg", 500*time.Millisecond, 0.5)
	sink := &bufferCloser{}
	var gotArgs []string
	waited := 0
	w.start = func(args []string) (*encoder, error) {
		gotArgs = args
		return &encoder{stdin: sink, wait: func() error { waited++; return nil }}, nil
	}

	for i := 0; i < 2; i++ {
		if err := w.Add(blankFrame(i, 4, 2), nil); err != nil {
			t.Fatalf("Add frame %d: %v", i, err)
		}
	}
	if err := w.Add(blankFrame(2, 2, 2), nil); err == nil {
		t.Fatal("expected size change to be rejected")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	args := strings.Join(gotArgs, " ")
	for _, want := range []string{"-s 4x2", "-r 2", "-pix_fmt rgb24", "-i pipe:0", out} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}
	if sink.Len() != 2*4*2*3 || !sink.closed || waited != 1 || w.Frames() != 2 {
		t.Fatalf("bytes=%d closed=%v waited=%d frames=%d", sink.Len(), sink.closed, waited, w.Frames())
	}
}

func TestFFmpegWriterCloseWithoutFrames(t *testing.T) {
	w := NewFFmpegWriter(t.Context(), filepath.Join(t.TempDir(), "x.mp4"), "", time.Second, 0)
	w.start = func([]string) (*encoder, error) { return nil, errors.New("must not start") }
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
