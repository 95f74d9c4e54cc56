package media

import (
	"context"
	"errors"
	"time"
)

// Frame is one sampled video frame in packed RGB24.
type Frame struct {
	Index     int
	Timestamp float64 // seconds from the start of the video
	Width     int
	Height    int
	Pixels    []byte
}

// RawFrame is what a decoder produces before the Sampler assigns an index.
type RawFrame struct {
	Timestamp float64
	Width     int
	Height    int
	Pixels    []byte
}

// ErrCorruptFrame is returned by a FrameReader for a frame that cannot be
// decoded but after which decoding may continue.
var ErrCorruptFrame = errors.New("corrupt frame")

// FrameReader yields decoded frames for a single pass.
type FrameReader interface {
	// Next blocks until the next frame is decoded. It returns io.EOF once the
	// video is exhausted and ErrCorruptFrame for a skippable frame.
	Next() (RawFrame, error)
	Close() error
}

// FrameSource opens a fresh decoding pass. Each call starts from the first frame.
type FrameSource interface {
	Open(ctx context.Context, interval time.Duration) (FrameReader, error)
}

// Prober is implemented by sources that can report the video duration ahead
// of decoding, used for progress reporting.
type Prober interface {
	Duration(ctx context.Context) (time.Duration, error)
}

func validDimensions(f RawFrame) bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pixels) == f.Width*f.Height*3
}
