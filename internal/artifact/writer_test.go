package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"courtside/internal/report"
)

func sampleArtifact(player int, role report.Role, lang string) report.Artifact {
	return report.Artifact{
		Request:     report.Request{Player: player, Role: role, Language: lang},
		Title:       "Badminton Performance Analysis - Player 1",
		Sections:    []report.Section{{Heading: "Technical Performance", Body: "Good grip.\n- keep elbow high\n\nMore."}},
		GeneratedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Attempts:    1,
	}
}

func newTestWriter(t *testing.T, pdf bool) *Writer {
	t.Helper()
	w, err := NewWriter(Options{OutputDir: t.TempDir(), Video: "/videos/Final Match.mp4", RenderPDF: pdf})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func TestWriterWritesTextAndEnglishPDF(t *testing.T) {
	w := newTestWriter(t, true)
	paths, err := w.Write(context.Background(), sampleArtifact(0, report.RoleCoach, "en"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	wantText := filepath.Join(w.Dir(), TextDir, "Final Match_player1_coach_en_report.txt")
	if paths.Text != wantText {
		t.Fatalf("text path = %q, want %q", paths.Text, wantText)
	}
	data, err := os.ReadFile(paths.Text)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	if !strings.Contains(string(data), "Technical Performance\n---------------------\nGood grip.") {
		t.Fatalf("unexpected text content:\n%s", data)
	}
	if strings.Contains(string(data), FailedBanner) {
		t.Fatal("successful artifact must not carry the failure banner")
	}

	if paths.PDF != filepath.Join(w.Dir(), PDFDir, "Final Match_player1_coach_en_report.pdf") {
		t.Fatalf("unexpected pdf path %q", paths.PDF)
	}
	pdf, err := os.ReadFile(paths.PDF)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", pdf[:min(8, len(pdf))])
	}
}

func TestWriterSkipsPDFForNonEnglish(t *testing.T) {
	w := newTestWriter(t, true)
	paths, err := w.Write(context.Background(), sampleArtifact(1, report.RoleParent, "kn"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if paths.PDF != "" {
		t.Fatalf("expected no PDF for Kannada, got %q", paths.PDF)
	}
	if filepath.Base(paths.Text) != "Final Match_player2_parent_kn_report.txt" {
		t.Fatalf("unexpected name %q", filepath.Base(paths.Text))
	}
}

func TestWriterMarksFailedPlaceholder(t *testing.T) {
	w := newTestWriter(t, true)
	art := sampleArtifact(0, report.RoleStudent, "en")
	art.Failed = true
	art.FailureReason = "generation error: http 401"
	paths, err := w.Write(context.Background(), art)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(paths.Text)
	if err != nil {
		t.Fatalf("read text: %v", err)
	}
	if !strings.HasPrefix(string(data), FailedBanner+"\nReason: generation error: http 401\n") {
		t.Fatalf("expected banner first, got:\n%s", data)
	}
	if paths.PDF == "" {
		t.Fatal("expected failed placeholder PDF")
	}
}

func TestWriterRejectsSecondWriteOfSameRequest(t *testing.T) {
	w := newTestWriter(t, false)
	art := sampleArtifact(0, report.RoleCoach, "en")
	if _, err := w.Write(context.Background(), art); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write(context.Background(), art); !errors.Is(err, ErrAlreadyWritten) {
		t.Fatalf("expected ErrAlreadyWritten, got %v", err)
	}
	if n := len(w.Entries()); n != 1 {
		t.Fatalf("expected one entry, got %d", n)
	}
}

func TestWriterWaitsForDirectoryLock(t *testing.T) {
	dir := t.TempDir()
	other := flock.New(filepath.Join(dir, lockName))
	if err := other.Lock(); err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer other.Unlock()

	w, err := NewWriter(Options{OutputDir: dir, Video: "match.mp4", LockTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := w.Write(context.Background(), sampleArtifact(0, report.RoleCoach, "en")); err == nil {
		t.Fatal("expected lock timeout while another holder has the directory")
	}
	if err := other.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := w.Write(context.Background(), sampleArtifact(0, report.RoleCoach, "en")); err != nil {
		t.Fatalf("Write after unlock: %v", err)
	}
}

type brokenRenderer struct{}

func (brokenRenderer) Ext() string { return "pdf" }

func (brokenRenderer) Render(io.Writer, report.Artifact) error {
	return errors.New("font table missing")
}

func TestWriterKeepsTextWhenPDFFails(t *testing.T) {
	w := newTestWriter(t, true)
	w.pdf = brokenRenderer{}

	paths, err := w.Write(context.Background(), sampleArtifact(0, report.RoleCoach, "en"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if paths.PDF != "" {
		t.Fatalf("expected no pdf path, got %q", paths.PDF)
	}
	if _, err := os.Stat(paths.Text); err != nil {
		t.Fatalf("expected text report to stay: %v", err)
	}
	entries := w.Entries()
	if len(entries) != 1 || entries[0].Failed || !strings.Contains(entries[0].Warning, "font table missing") {
		t.Fatalf("unexpected entries %+v", entries)
	}

	readme, err := w.WriteReadme(context.Background(), RunInfo{RunID: "run-2", Video: "/videos/Final Match.mp4", Players: 1, Status: "done"})
	if err != nil {
		t.Fatalf("WriteReadme: %v", err)
	}
	data, err := os.ReadFile(readme)
	if err != nil {
		t.Fatalf("read readme: %v", err)
	}
	for _, want := range []string{
		"- text_reports/Final Match_player1_coach_en_report.txt\n",
		"Warnings:\n- player1_coach_en: pdf not rendered",
	} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("README missing %q:\n%s", want, data)
		}
	}
}

func TestWriteReadmeListsArtifactsAndFailures(t *testing.T) {
	w := newTestWriter(t, true)
	ok := sampleArtifact(0, report.RoleCoach, "en")
	bad := sampleArtifact(0, report.RoleParent, "hi")
	bad.Failed = true
	bad.FailureReason = "exhausted retries"
	for _, a := range []report.Artifact{ok, bad} {
		if _, err := w.Write(context.Background(), a); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	path, err := w.WriteReadme(context.Background(), RunInfo{
		RunID:       "run-1",
		Video:       "/videos/Final Match.mp4",
		Players:     1,
		Roles:       []string{"coach", "parent"},
		Languages:   []string{"en", "hi"},
		GeneratedAt: time.Now(),
		Status:      "done",
	})
	if err != nil {
		t.Fatalf("WriteReadme: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read readme: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"Video: Final Match.mp4",
		"Languages: English, हिंदी (Hindi)",
		"text_reports/Final Match_player1_coach_en_report.txt, pdf_reports/Final Match_player1_coach_en_report.pdf",
		"Final Match_player1_parent_hi_report.txt  " + FailedBanner,
		"- player1_parent_hi: exhausted retries",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("README missing %q:\n%s", want, text)
		}
	}
}

func TestVideoStem(t *testing.T) {
	tests := map[string]string{
		"/a/b/match.final.mkv": "match.final",
		"clip":                 "clip",
		"":                     "video",
	}
	for in, want := range tests {
		if got := VideoStem(in); got != want {
			t.Fatalf("VideoStem(%q) = %q, want %q", in, got, want)
		}
	}
}
