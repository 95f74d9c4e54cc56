package artifact

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"courtside/internal/fileutil"
	"courtside/internal/language"
)

// RunInfo describes a run for the README index.
type RunInfo struct {
	RunID       string
	Video       string
	Players     int
	Roles       []string
	Languages   []string
	GeneratedAt time.Time
	Status      string
}

// WriteReadme writes README.txt into the output directory listing every
// artifact this Writer produced.
func (w *Writer) WriteReadme(ctx context.Context, info RunInfo) (string, error) {
	unlock, err := w.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	path := filepath.Join(w.dir, "README.txt")
	if err := fileutil.WriteFileAtomic(path, []byte(w.readme(info)), 0o644); err != nil {
		return "", fmt.Errorf("write readme: %w", err)
	}
	return path, nil
}

func (w *Writer) readme(info RunInfo) string {
	var b strings.Builder
	b.WriteString("Badminton Match Analysis Reports\n")
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Video: %s\n", filepath.Base(info.Video))
	if info.RunID != "" {
		fmt.Fprintf(&b, "Run ID: %s\n", info.RunID)
	}
	fmt.Fprintf(&b, "Generated on: %s\n", info.GeneratedAt.Local().Format("2006-01-02 15:04:05"))
	if info.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", info.Status)
	}
	fmt.Fprintf(&b, "Number of Players: %d\n", info.Players)
	fmt.Fprintf(&b, "Report Types: %s\n", strings.Join(info.Roles, ", "))
	names := make([]string, 0, len(info.Languages))
	for _, code := range info.Languages {
		names = append(names, language.DisplayName(code))
	}
	fmt.Fprintf(&b, "Languages: %s\n", strings.Join(names, ", "))

	b.WriteString("\nDirectory Structure:\n")
	fmt.Fprintf(&b, "- %s/: plain text reports\n", TextDir)
	fmt.Fprintf(&b, "- %s/: formatted PDF reports (English only)\n", PDFDir)
	b.WriteString("\nEach report is named in the format:\n")
	b.WriteString("<video_name>_player<number>_<role>_<language>_report.<txt|pdf>\n")

	entries := w.Entries()
	b.WriteString("\nReports:\n")
	if len(entries) == 0 {
		b.WriteString("- none\n")
	}
	var failed, partial []Entry
	for _, e := range entries {
		line := "- " + rel(w.dir, e.Paths.Text)
		if e.Paths.PDF != "" {
			line += ", " + rel(w.dir, e.Paths.PDF)
		}
		if e.Failed {
			line += "  " + FailedBanner
			failed = append(failed, e)
		}
		if e.Warning != "" {
			partial = append(partial, e)
		}
		b.WriteString(line + "\n")
	}
	if len(partial) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, e := range partial {
			fmt.Fprintf(&b, "- %s: %s\n", e.Request.Key(), e.Warning)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nFailures:\n")
		for _, e := range failed {
			fmt.Fprintf(&b, "- %s: %s\n", e.Request.Key(), e.Reason)
		}
	}
	return b.String()
}

func rel(base, path string) string {
	if r, err := filepath.Rel(base, path); err == nil {
		return r
	}
	return path
}
