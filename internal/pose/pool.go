package pose

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"courtside/internal/logging"
	"courtside/internal/media"
)

// workerHandle is the subset of WorkerDetector the pool relies on.
type workerHandle interface {
	Detector
	Alive() bool
	Close() error
}

// Pool bounds concurrent pose extraction across all runs in the process. It
// lazily starts up to Size workers and lends an idle one to each Detect call.
type Pool struct {
	size   int
	start  func(ctx context.Context) (workerHandle, error)
	logger *slog.Logger

	tokens chan struct{}
	mu     sync.Mutex
	idle   []workerHandle
	all    map[workerHandle]struct{}
	closed bool
}

// PoolOptions configures a worker pool.
type PoolOptions struct {
	Size        int
	Command     []string
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// ErrPoolClosed is returned by Detect after Close.
var ErrPoolClosed = errors.New("pose pool closed")

// NewPool returns a pool of subprocess workers. Workers are bound to the
// background context and live until Close.
func NewPool(opts PoolOptions) *Pool {
	command := append([]string(nil), opts.Command...)
	logger := opts.Logger
	timeout := opts.CallTimeout
	return newPool(opts.Size, logger, func(context.Context) (workerHandle, error) {
		return StartWorker(context.Background(), command, timeout, logger)
	})
}

func newPool(size int, logger *slog.Logger, start func(ctx context.Context) (workerHandle, error)) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:   size,
		start:  start,
		logger: logging.NewComponentLogger(logger, "pose-pool"),
		tokens: make(chan struct{}, size),
		all:    make(map[workerHandle]struct{}, size),
	}
}

// Size returns the maximum number of concurrent detections.
func (p *Pool) Size() int { return p.size }

// Detect borrows a worker for one frame. It blocks while every worker is busy.
func (p *Pool) Detect(ctx context.Context, frame media.Frame, maxPersons int) ([]Detection, error) {
	select {
	case p.tokens <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-p.tokens }()

	w, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	dets, err := w.Detect(ctx, frame, maxPersons)
	p.release(w)
	return dets, err
}

func (p *Pool) acquire(ctx context.Context) (workerHandle, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	for len(p.idle) > 0 {
		w := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if w.Alive() {
			p.mu.Unlock()
			return w, nil
		}
		delete(p.all, w)
		_ = w.Close()
	}
	p.mu.Unlock()

	w, err := p.start(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.all[w] = struct{}{}
	count := len(p.all)
	p.mu.Unlock()
	p.logger.Debug("pose worker added", logging.Int("workers", count), logging.Int("pool_size", p.size))
	return w, nil
}

func (p *Pool) release(w workerHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !w.Alive() {
		delete(p.all, w)
		go w.Close() //nolint:errcheck
		return
	}
	p.idle = append(p.idle, w)
}

// Close stops every worker. In-flight detections finish first.
func (p *Pool) Close() error {
	for i := 0; i < p.size; i++ {
		p.tokens <- struct{}{}
	}
	p.mu.Lock()
	p.closed = true
	workers := make([]workerHandle, 0, len(p.all))
	for w := range p.all {
		workers = append(workers, w)
	}
	p.all = map[workerHandle]struct{}{}
	p.idle = nil
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Close()
		}()
	}
	wg.Wait()
	for i := 0; i < p.size; i++ {
		<-p.tokens
	}
	return nil
}
