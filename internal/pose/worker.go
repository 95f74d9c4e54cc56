package pose

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"courtside/internal/logging"
	"courtside/internal/media"
	"courtside/internal/services"
)

var commandContext = exec.CommandContext

// ErrWorkerClosed is returned by Detect after the worker process has exited
// or been stopped.
var ErrWorkerClosed = errors.New("pose worker closed")

// WorkerDetector drives one pose model subprocess. Requests are serialized;
// use Pool to run several workers in parallel.
type WorkerDetector struct {
	command     []string
	callTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	seq    int
	closed bool
	done   chan struct{}
}

// StartWorker launches the pose worker described by command. The process is
// stopped when ctx is cancelled or Close is called.
func StartWorker(ctx context.Context, command []string, callTimeout time.Duration, logger *slog.Logger) (*WorkerDetector, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "pose", "start worker", "pose worker command is empty", nil)
	}
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	w := &WorkerDetector{
		command:     append([]string(nil), command...),
		callTimeout: callTimeout,
		logger:      logging.NewComponentLogger(logger, "pose-worker"),
		done:        make(chan struct{}),
	}

	cmd := commandContext(ctx, command[0], command[1:]...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("pose worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pose worker stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("pose worker stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "pose", "start worker", command[0], err)
	}
	w.cmd = cmd
	w.stdin = stdin
	w.stdout = bufio.NewReaderSize(stdout, 1<<16)

	w.logger.Debug("pose worker started", logging.Int("pid", cmd.Process.Pid), logging.String("command", strings.Join(command, " ")))

	go w.logStderr(stderr)
	go func() {
		err := cmd.Wait()
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.done)
		if err != nil && ctx.Err() == nil {
			logging.WarnWithContext(w.logger, "pose worker exited", "pose_worker_exit",
				logging.Error(err),
				logging.String(logging.FieldImpact, "worker removed from pool"),
				logging.String(logging.FieldErrorHint, "check the pose worker stderr output above"),
			)
		}
	}()
	return w, nil
}

func (w *WorkerDetector) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"):
			w.logger.Error("pose worker", logging.String("line", line))
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			w.logger.Warn("pose worker", logging.String("line", line),
				logging.String(logging.FieldEventType, "pose_worker_stderr"))
		default:
			w.logger.Debug("pose worker", logging.String("line", line))
		}
	}
}

// Detect sends frame to the worker and waits for its poses. A call that
// exceeds the per-call timeout kills the worker.
func (w *WorkerDetector) Detect(ctx context.Context, frame media.Frame, maxPersons int) ([]Detection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkerClosed
	}
	w.seq++
	req := workerRequest{
		Seq:        w.seq,
		FrameData:  frame.Pixels,
		Width:      frame.Width,
		Height:     frame.Height,
		Format:     "rgb24",
		MaxPersons: maxPersons,
		Timestamp:  frame.Timestamp,
	}

	type result struct {
		resp workerResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		if err := writeMessage(w.stdin, req); err != nil {
			ch <- result{err: err}
			return
		}
		var resp workerResponse
		err := readMessage(w.stdout, &resp)
		ch <- result{resp: resp, err: err}
	}()

	timer := time.NewTimer(w.callTimeout)
	defer timer.Stop()
	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		w.killLocked()
		return nil, ctx.Err()
	case <-timer.C:
		w.killLocked()
		return nil, services.Wrap(services.ErrTimeout, "pose", "detect",
			fmt.Sprintf("no response within %s", w.callTimeout), nil)
	}
	if res.err != nil {
		w.killLocked()
		if w.exited() || errors.Is(res.err, io.EOF) || errors.Is(res.err, io.ErrUnexpectedEOF) || errors.Is(res.err, os.ErrClosed) {
			return nil, fmt.Errorf("%w: %v", ErrWorkerClosed, res.err)
		}
		return nil, fmt.Errorf("pose worker exchange: %w", res.err)
	}
	if res.resp.Seq != req.Seq {
		w.killLocked()
		return nil, fmt.Errorf("pose worker replied to seq %d, expected %d", res.resp.Seq, req.Seq)
	}
	if msg := strings.TrimSpace(res.resp.Error); msg != "" {
		return nil, services.Wrap(services.ErrDetectionGap, "pose", "detect", msg, nil)
	}

	detections := make([]Detection, 0, len(res.resp.Poses))
	for _, p := range res.resp.Poses {
		detections = append(detections, p.detection())
	}
	return detections, nil
}

func (w *WorkerDetector) exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Alive reports whether the worker process is still running.
func (w *WorkerDetector) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.closed
}

func (w *WorkerDetector) killLocked() {
	w.closed = true
	if w.cmd != nil && w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
}

// Close asks the worker to exit by closing stdin and kills it if it has not
// exited within two seconds.
func (w *WorkerDetector) Close() error {
	w.mu.Lock()
	if w.stdin != nil {
		_ = w.stdin.Close()
	}
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		w.mu.Lock()
		w.killLocked()
		w.mu.Unlock()
		<-w.done
	}
	return nil
}
