package workflow

import (
	"context"
	"testing"

	"courtside/internal/config"
	"courtside/internal/logging"
	"courtside/internal/report"
	"courtside/internal/runstore"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to runstore.Status
		want     bool
	}{
		{runstore.StatusInit, runstore.StatusSampling, true},
		{runstore.StatusInit, runstore.StatusAggregating, false},
		{runstore.StatusSampling, runstore.StatusPoseExtraction, true},
		{runstore.StatusSampling, runstore.StatusAggregating, true},
		{runstore.StatusPoseExtraction, runstore.StatusSampling, false},
		{runstore.StatusAggregating, runstore.StatusSynthesizing, true},
		{runstore.StatusSynthesizing, runstore.StatusDone, true},
		{runstore.StatusSynthesizing, runstore.StatusFailed, true},
		{runstore.StatusInit, runstore.StatusFailed, true},
		{runstore.StatusDone, runstore.StatusFailed, false},
		{runstore.StatusFailed, runstore.StatusFailed, false},
		{runstore.StatusAggregating, runstore.StatusDone, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRunStateRejectsInvalidTransition(t *testing.T) {
	state := newRunState("run-1", nil, logging.NewNop())
	ctx := context.Background()
	if err := state.advance(ctx, runstore.StatusSynthesizing, ""); err == nil {
		t.Fatal("expected error skipping stages")
	}
	if err := state.advance(ctx, runstore.StatusSampling, ""); err != nil {
		t.Fatalf("advance sampling: %v", err)
	}
	if err := state.advance(ctx, runstore.StatusFailed, "boom"); err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	if err := state.advance(ctx, runstore.StatusDone, ""); err == nil {
		t.Fatal("expected error leaving terminal state")
	}
	if got := state.current(); got != runstore.StatusFailed {
		t.Fatalf("current = %s", got)
	}
	if got := len(state.visited()); got != 3 {
		t.Fatalf("visited %d states, want 3", got)
	}
}

func TestBuildRequestsIsCartesianProduct(t *testing.T) {
	rc := config.RunConfig{
		PlayerCount: 2,
		Roles:       []string{"Coach", "parent"},
		Languages:   []string{"en", "hi", "ta"},
	}
	requests, err := buildRequests(rc)
	if err != nil {
		t.Fatalf("buildRequests: %v", err)
	}
	if len(requests) != 12 {
		t.Fatalf("requests = %d, want 12", len(requests))
	}
	first := report.Request{Player: 0, Role: report.RoleCoach, Language: "en"}
	last := report.Request{Player: 1, Role: report.RoleParent, Language: "ta"}
	if requests[0] != first || requests[11] != last {
		t.Fatalf("order = %v ... %v", requests[0], requests[11])
	}
	seen := map[string]bool{}
	for _, r := range requests {
		if seen[r.Key()] {
			t.Fatalf("duplicate request %s", r.Key())
		}
		seen[r.Key()] = true
	}

	rc.Roles = []string{"umpire"}
	if _, err := buildRequests(rc); err == nil {
		t.Fatal("expected unknown role error")
	}
}

type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return "ok", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestLimitedGeneratorWaitsForSlot(t *testing.T) {
	inner := &blockingGenerator{started: make(chan struct{}, 2), release: make(chan struct{})}
	limited := newLimitedGenerator(inner, 1)

	go func() { _, _ = limited.Generate(context.Background(), "a") }()
	<-inner.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limited.Generate(ctx, "b"); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled while slot is held", err)
	}
	close(inner.release)
}
