package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"courtside/internal/fileutil"
	"courtside/internal/language"
	"courtside/internal/logging"
	"courtside/internal/report"
	"courtside/internal/textutil"
)

const (
	TextDir  = "text_reports"
	PDFDir   = "pdf_reports"
	lockName = ".courtside.lock"
)

// ErrAlreadyWritten is returned when the same request is written twice
// through one Writer.
var ErrAlreadyWritten = errors.New("artifact already written")

// Paths lists the files produced for one artifact. PDF is empty when no PDF
// was rendered.
type Paths struct {
	Text string
	PDF  string
}

// Entry records one written artifact for the run index.
type Entry struct {
	Request report.Request
	Paths   Paths
	Failed  bool
	Reason  string
	// Warning notes a partial write, such as a PDF that could not be rendered.
	Warning string
}

// Options configures a Writer.
type Options struct {
	OutputDir string
	// Video is the source video path; its base name prefixes every file.
	Video     string
	RenderPDF bool
	// LockTimeout bounds the wait for the output directory lock.
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// Writer persists the artifacts of one run.
type Writer struct {
	dir        string
	stem       string
	text       Renderer
	pdf        Renderer
	lock       *flock.Flock
	lockWait   time.Duration
	logger     *slog.Logger
	retryDelay time.Duration

	// ioMu serializes holders of lock within the process; flock only
	// excludes other open file descriptions.
	ioMu    sync.Mutex
	mu      sync.Mutex
	written map[string]Entry
}

// NewWriter prepares the output directory tree.
func NewWriter(opts Options) (*Writer, error) {
	dir := strings.TrimSpace(opts.OutputDir)
	if dir == "" {
		return nil, errors.New("artifact writer: output directory required")
	}
	for _, sub := range []string{TextDir, PDFDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("artifact writer: create %s: %w", sub, err)
		}
	}
	stem := VideoStem(opts.Video)
	w := &Writer{
		dir:        dir,
		stem:       stem,
		text:       TextRenderer{},
		lock:       flock.New(filepath.Join(dir, lockName)),
		lockWait:   opts.LockTimeout,
		logger:     logging.NewComponentLogger(opts.Logger, "artifact"),
		retryDelay: 50 * time.Millisecond,
		written:    make(map[string]Entry),
	}
	if w.lockWait <= 0 {
		w.lockWait = 30 * time.Second
	}
	if opts.RenderPDF {
		w.pdf = PDFRenderer{}
	}
	return w, nil
}

// VideoStem returns the sanitized base name of video without its extension.
func VideoStem(video string) string {
	base := filepath.Base(strings.TrimSpace(video))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	stem := textutil.SanitizeFileName(base)
	if stem == "" || stem == "." {
		return "video"
	}
	return stem
}

// FileName returns the deterministic base name for a request and extension.
func FileName(stem string, req report.Request, ext string) string {
	return fmt.Sprintf("%s_player%d_%s_%s_report.%s", stem, req.Player+1, req.Role, req.Language, ext)
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write persists a, returning the files it produced. Each request can be
// written once per Writer.
func (w *Writer) Write(ctx context.Context, a report.Artifact) (Paths, error) {
	key := a.Request.Key()
	w.mu.Lock()
	if _, ok := w.written[key]; ok {
		w.mu.Unlock()
		return Paths{}, fmt.Errorf("%w: %s", ErrAlreadyWritten, key)
	}
	// Reserve the slot so concurrent duplicates fail fast.
	w.written[key] = Entry{Request: a.Request}
	w.mu.Unlock()

	paths, warning, err := w.write(ctx, a)
	w.mu.Lock()
	if err != nil {
		delete(w.written, key)
	} else {
		w.written[key] = Entry{Request: a.Request, Paths: paths, Failed: a.Failed, Reason: a.FailureReason, Warning: warning}
	}
	w.mu.Unlock()
	return paths, err
}

// write renders the text file and, for English, the PDF. A PDF failure
// keeps the text report and is returned as a warning.
func (w *Writer) write(ctx context.Context, a report.Artifact) (Paths, string, error) {
	unlock, err := w.acquire(ctx)
	if err != nil {
		return Paths{}, "", err
	}
	defer unlock()

	var (
		paths   Paths
		warning string
	)
	paths.Text = filepath.Join(w.dir, TextDir, FileName(w.stem, a.Request, w.text.Ext()))
	if err := w.render(paths.Text, w.text, a); err != nil {
		return Paths{}, "", err
	}
	if w.pdf != nil && a.Request.Language == language.Default {
		target := filepath.Join(w.dir, PDFDir, FileName(w.stem, a.Request, w.pdf.Ext()))
		if err := w.render(target, w.pdf, a); err != nil {
			warning = "pdf not rendered: " + err.Error()
			logging.WarnWithContext(logging.WithContext(ctx, w.logger), "pdf report not rendered", "pdf_render_failed",
				logging.String(logging.FieldBranch, a.Request.Key()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "text report kept without a PDF"),
				logging.String(logging.FieldErrorHint, "check free space and permissions in the pdf_reports directory"),
			)
		} else {
			paths.PDF = target
		}
	}
	w.logger.Info("report artifact written",
		logging.String(logging.FieldBranch, a.Request.Key()),
		logging.String("text_path", paths.Text),
		logging.String("pdf_path", paths.PDF),
		logging.Bool("failed", a.Failed),
	)
	return paths, warning, nil
}

func (w *Writer) render(path string, r Renderer, a report.Artifact) error {
	if err := fileutil.WriteAtomicFunc(path, 0o644, func(out io.Writer) error {
		return r.Render(out, a)
	}); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (w *Writer) acquire(ctx context.Context) (func(), error) {
	w.ioMu.Lock()
	lockCtx, cancel := context.WithTimeout(ctx, w.lockWait)
	defer cancel()
	ok, err := w.lock.TryLockContext(lockCtx, w.retryDelay)
	if err != nil || !ok {
		w.ioMu.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock output directory %s: timed out after %s", w.dir, w.lockWait)
		}
		return nil, fmt.Errorf("lock output directory %s: %w", w.dir, err)
	}
	return func() {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Debug("output lock release failed", logging.Error(err))
		}
		w.ioMu.Unlock()
	}, nil
}

// Entries returns every artifact written so far, ordered by request key.
func (w *Writer) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Entry, 0, len(w.written))
	for _, e := range w.written {
		if e.Paths.Text != "" {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Request.Key() < out[j].Request.Key() })
	return out
}
