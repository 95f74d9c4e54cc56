package media_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"courtside/internal/media"
	"courtside/internal/services"
)

type step struct {
	frame media.RawFrame
	err   error
	block bool
}

type scriptedSource struct {
	mu     sync.Mutex
	steps  []step
	opens  int
	closed int
}

func (s *scriptedSource) Open(context.Context, time.Duration) (media.FrameReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return &scriptedReader{source: s, steps: s.steps, unblock: make(chan struct{})}, nil
}

type scriptedReader struct {
	source    *scriptedSource
	steps     []step
	pos       int
	unblock   chan struct{}
	closeOnce sync.Once
}

func (r *scriptedReader) Next() (media.RawFrame, error) {
	if r.pos >= len(r.steps) {
		return media.RawFrame{}, io.EOF
	}
	st := r.steps[r.pos]
	r.pos++
	if st.block {
		<-r.unblock
		return media.RawFrame{}, errors.New("closed")
	}
	return st.frame, st.err
}

func (r *scriptedReader) Close() error {
	r.closeOnce.Do(func() {
		close(r.unblock)
		r.source.mu.Lock()
		r.source.closed++
		r.source.mu.Unlock()
	})
	return nil
}

func raw(ts float64) media.RawFrame {
	return media.RawFrame{Timestamp: ts, Width: 2, Height: 2, Pixels: make([]byte, 2*2*3)}
}

func collect(t *testing.T, s *media.Sampler) ([]media.Frame, error) {
	t.Helper()
	var frames []media.Frame
	for frame, err := range s.Frames(context.Background()) {
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func TestSamplerYieldsIndexedFrames(t *testing.T) {
	src := &scriptedSource{steps: []step{{frame: raw(0)}, {frame: raw(0.5)}, {frame: raw(1.0)}}}
	sampler := media.NewSampler(src, media.SamplerOptions{Interval: 500 * time.Millisecond, MaxConsecutiveSkips: 2, StallTimeout: time.Second})

	frames, err := collect(t, sampler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Index != i {
			t.Fatalf("frame %d has index %d", i, f.Index)
		}
	}
	if src.closed != 1 {
		t.Fatalf("expected reader closed once, got %d", src.closed)
	}
}

func TestSamplerRestartsFromZero(t *testing.T) {
	src := &scriptedSource{steps: []step{{frame: raw(0)}, {frame: raw(0.5)}}}
	sampler := media.NewSampler(src, media.SamplerOptions{Interval: 500 * time.Millisecond, StallTimeout: time.Second})

	first, err := collect(t, sampler)
	if err != nil {
		t.Fatal(err)
	}
	second, err := collect(t, sampler)
	if err != nil {
		t.Fatal(err)
	}
	if src.opens != 2 {
		t.Fatalf("expected source opened twice, got %d", src.opens)
	}
	if len(first) != len(second) || second[0].Index != 0 || second[0].Timestamp != 0 {
		t.Fatalf("second pass did not restart: %+v", second)
	}
}

func TestSamplerSkipsCorruptFrames(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{frame: raw(0)},
		{err: media.ErrCorruptFrame},
		{frame: raw(0.5)}, // duplicate of nothing, valid
		{frame: raw(0.5)}, // non-increasing, skipped
		{frame: raw(1.5)},
	}}
	sampler := media.NewSampler(src, media.SamplerOptions{Interval: 500 * time.Millisecond, MaxConsecutiveSkips: 1, StallTimeout: time.Second})

	frames, err := collect(t, sampler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if frames[2].Timestamp != 1.5 || frames[2].Index != 2 {
		t.Fatalf("unexpected last frame: %+v", frames[2])
	}
	if sampler.Skipped() != 2 {
		t.Fatalf("expected 2 skipped frames, got %d", sampler.Skipped())
	}
}

func TestSamplerEscalatesConsecutiveSkips(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{frame: raw(0)},
		{err: media.ErrCorruptFrame},
		{err: media.ErrCorruptFrame},
		{err: media.ErrCorruptFrame},
		{frame: raw(2)},
	}}
	sampler := media.NewSampler(src, media.SamplerOptions{Interval: time.Second, MaxConsecutiveSkips: 2, StallTimeout: time.Second})

	frames, err := collect(t, sampler)
	if !errors.Is(err, services.ErrMedia) {
		t.Fatalf("expected media error, got %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame before escalation, got %d", len(frames))
	}
}

func TestSamplerStallTimeout(t *testing.T) {
	src := &scriptedSource{steps: []step{{frame: raw(0)}, {block: true}}}
	sampler := media.NewSampler(src, media.SamplerOptions{Interval: time.Second, StallTimeout: 50 * time.Millisecond})

	_, err := collect(t, sampler)
	if !errors.Is(err, services.ErrMedia) {
		t.Fatalf("expected media error, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout cause, got %v", err)
	}
}

func TestSamplerDecoderFailureIsMediaError(t *testing.T) {
	src := &scriptedSource{steps: []step{{err: errors.New("moov atom not found")}}}
	sampler := media.NewSampler(src, media.SamplerOptions{Interval: time.Second, StallTimeout: time.Second})

	_, err := collect(t, sampler)
	if !errors.Is(err, services.ErrMedia) {
		t.Fatalf("expected media error, got %v", err)
	}
}

func TestSamplerStopsWhenConsumerBreaks(t *testing.T) {
	src := &scriptedSource{steps: []step{{frame: raw(0)}, {frame: raw(1)}, {frame: raw(2)}}}
	sampler := media.NewSampler(src, media.SamplerOptions{Interval: time.Second, StallTimeout: time.Second})

	count := 0
	for _, err := range sampler.Frames(context.Background()) {
		if err != nil {
			t.Fatal(err)
		}
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected to stop after first frame, got %d", count)
	}
	if src.closed != 1 {
		t.Fatalf("expected reader closed on early exit, got %d", src.closed)
	}
}

func TestSamplerHonoursCancellation(t *testing.T) {
	src := &scriptedSource{steps: []step{{block: true}}}
	sampler := media.NewSampler(src, media.SamplerOptions{Interval: time.Second, StallTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	var got error
	for _, err := range sampler.Frames(ctx) {
		got = err
	}
	if !errors.Is(got, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", got)
	}
}
