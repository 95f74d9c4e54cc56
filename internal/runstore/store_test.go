package runstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"courtside/internal/runstore"
	"courtside/internal/testsupport"
)

func TestOpenCreatesSchemaAndRoundTripsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	created, err := store.CreateRun(ctx, runstore.Run{
		ID:        "run-abc",
		VideoPath: "/videos/final.mp4",
		OutputDir: "/reports/final",
		Players:   2,
		Roles:     []string{"coach", "parent"},
		Languages: []string{"en", "hi"},
	})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if created.Status != runstore.StatusInit || created.Players != 2 {
		t.Fatalf("unexpected run %+v", created)
	}
	if len(created.Roles) != 2 || created.Languages[1] != "hi" {
		t.Fatalf("lists not round-tripped: %+v", created)
	}
	if created.CreatedAt.IsZero() || created.FinishedAt != nil {
		t.Fatalf("unexpected timestamps %+v", created)
	}
	if store.Path() != filepath.Join(cfg.Paths.DataDir, "runs.db") {
		t.Fatalf("unexpected store path %s", store.Path())
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.NewRun(t, store, "run-1", "a.mp4")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.GetRun(context.Background(), "run-1"); err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
}

func TestRunStatusTransitionsAndTerminalGuard(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewRun(t, store, "run-1", "a.mp4")

	for _, st := range []runstore.Status{runstore.StatusSampling, runstore.StatusAggregating, runstore.StatusSynthesizing} {
		if err := store.SetRunStatus(ctx, "run-1", st, ""); err != nil {
			t.Fatalf("SetRunStatus(%s): %v", st, err)
		}
	}
	if err := store.SetRunStatus(ctx, "run-1", runstore.StatusFailed, "media error: stalled"); err != nil {
		t.Fatalf("SetRunStatus(failed): %v", err)
	}
	if err := store.SetRunStatus(ctx, "run-1", runstore.StatusDone, ""); !errors.Is(err, runstore.ErrRunFinished) {
		t.Fatalf("expected ErrRunFinished, got %v", err)
	}
	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != runstore.StatusFailed || run.ErrorMessage != "media error: stalled" || run.FinishedAt == nil {
		t.Fatalf("unexpected final run %+v", run)
	}
	if err := store.SetRunStatus(ctx, "missing", runstore.StatusSampling, ""); !errors.Is(err, runstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBranchesFinishExactlyOnce(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewRun(t, store, "run-1", "a.mp4")

	branches := []runstore.Branch{
		{Key: "player1_coach_en", Player: 0, Role: "coach", Language: "en"},
		{Key: "player1_parent_en", Player: 0, Role: "parent", Language: "en"},
	}
	if err := store.CreateBranches(ctx, "run-1", branches); err != nil {
		t.Fatalf("CreateBranches: %v", err)
	}
	if err := store.StartBranch(ctx, "run-1", "player1_coach_en"); err != nil {
		t.Fatalf("StartBranch: %v", err)
	}
	done := runstore.BranchResult{Status: runstore.BranchDone, Attempts: 2, TextPath: "/r/a.txt", PDFPath: "/r/a.pdf"}
	if err := store.FinishBranch(ctx, "run-1", "player1_coach_en", done); err != nil {
		t.Fatalf("FinishBranch: %v", err)
	}
	again := runstore.BranchResult{Status: runstore.BranchFailed, Error: "late"}
	if err := store.FinishBranch(ctx, "run-1", "player1_coach_en", again); !errors.Is(err, runstore.ErrBranchFinished) {
		t.Fatalf("expected ErrBranchFinished, got %v", err)
	}
	failed := runstore.BranchResult{Status: runstore.BranchFailed, Attempts: 4, TextPath: "/r/b.txt", Error: "generation error"}
	if err := store.FinishBranch(ctx, "run-1", "player1_parent_en", failed); err != nil {
		t.Fatalf("FinishBranch pending branch: %v", err)
	}
	if err := store.FinishBranch(ctx, "run-1", "nope", done); !errors.Is(err, runstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.FinishBranch(ctx, "run-1", "player1_parent_en", runstore.BranchResult{Status: runstore.BranchGenerating}); err == nil {
		t.Fatal("expected non-terminal status to be rejected")
	}

	got, err := store.Branches(ctx, "run-1")
	if err != nil {
		t.Fatalf("Branches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 branches, got %d", len(got))
	}
	if got[0].Key != "player1_coach_en" || got[0].Status != runstore.BranchDone || got[0].Attempts != 2 || got[0].PDFPath != "/r/a.pdf" {
		t.Fatalf("unexpected coach branch %+v", got[0])
	}
	if got[1].Status != runstore.BranchFailed || got[1].ErrorMessage != "generation error" {
		t.Fatalf("unexpected parent branch %+v", got[1])
	}
	counts, err := store.BranchCounts(ctx, "run-1")
	if err != nil {
		t.Fatalf("BranchCounts: %v", err)
	}
	if counts[runstore.BranchDone] != 1 || counts[runstore.BranchFailed] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestListAndFindRuns(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.NewRun(t, store, "aaaa-1111", "one.mp4")
	testsupport.NewRun(t, store, "aaaa-2222", "two.mp4")
	testsupport.NewRun(t, store, "bbbb-3333", "three.mp4")

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected limit honoured, got %d", len(runs))
	}
	if run, err := store.FindRun(ctx, "bbbb"); err != nil || run.ID != "bbbb-3333" {
		t.Fatalf("FindRun(bbbb) = %v, %v", run, err)
	}
	if _, err := store.FindRun(ctx, "aaaa"); err == nil {
		t.Fatal("expected ambiguous prefix error")
	}
	if _, err := store.FindRun(ctx, "zzzz"); !errors.Is(err, runstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.RecordSummary(ctx, "aaaa-1111", runstore.Summary{FramesSampled: 120, FramesSkipped: 2, DetectionGaps: 5}); err != nil {
		t.Fatalf("RecordSummary: %v", err)
	}
	run, err := store.GetRun(ctx, "aaaa-1111")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.FramesSampled != 120 || run.FramesSkipped != 2 || run.DetectionGaps != 5 {
		t.Fatalf("summary not stored: %+v", run)
	}
}
