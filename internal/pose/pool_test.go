package pose

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"courtside/internal/media"
)

type fakeHandle struct {
	active  *atomic.Int32
	peak    *atomic.Int32
	dead    atomic.Bool
	closed  atomic.Bool
	failNow bool
}

func (f *fakeHandle) Detect(context.Context, media.Frame, int) ([]Detection, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	if f.failNow {
		f.dead.Store(true)
		return nil, ErrWorkerClosed
	}
	return []Detection{{Score: 1}}, nil
}

func (f *fakeHandle) Alive() bool  { return !f.dead.Load() && !f.closed.Load() }
func (f *fakeHandle) Close() error { f.closed.Store(true); return nil }

type fakeStarter struct {
	mu      sync.Mutex
	started []*fakeHandle
	active  atomic.Int32
	peak    atomic.Int32
	failing bool
}

func (s *fakeStarter) start(context.Context) (workerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := &fakeHandle{active: &s.active, peak: &s.peak, failNow: s.failing}
	s.started = append(s.started, h)
	return h, nil
}

func (s *fakeStarter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.started)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	starter := &fakeStarter{}
	pool := newPool(2, nil, starter.start)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Detect(context.Background(), media.Frame{}, 1); err != nil {
				t.Errorf("Detect: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := starter.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent detections, saw %d", peak)
	}
	if n := starter.count(); n > 2 {
		t.Fatalf("expected at most 2 workers started, got %d", n)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, h := range starter.started {
		if !h.closed.Load() {
			t.Fatal("expected every worker closed")
		}
	}
}

func TestPoolReplacesDeadWorker(t *testing.T) {
	starter := &fakeStarter{failing: true}
	pool := newPool(1, nil, starter.start)
	defer pool.Close()

	if _, err := pool.Detect(context.Background(), media.Frame{}, 1); !errors.Is(err, ErrWorkerClosed) {
		t.Fatalf("expected worker failure, got %v", err)
	}
	starter.mu.Lock()
	starter.failing = false
	starter.mu.Unlock()

	if _, err := pool.Detect(context.Background(), media.Frame{}, 1); err != nil {
		t.Fatalf("expected replacement worker to succeed, got %v", err)
	}
	if n := starter.count(); n != 2 {
		t.Fatalf("expected a replacement worker, got %d started", n)
	}
}

func TestPoolDetectAfterClose(t *testing.T) {
	pool := newPool(1, nil, (&fakeStarter{}).start)
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := pool.Detect(context.Background(), media.Frame{}, 1); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolDetectHonoursCancellationWhileBusy(t *testing.T) {
	pool := newPool(1, nil, (&fakeStarter{}).start)
	defer pool.Close()
	pool.tokens <- struct{}{}
	defer func() { <-pool.tokens }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := pool.Detect(ctx, media.Frame{}, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
