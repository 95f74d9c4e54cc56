package testsupport

import (
	"context"
	"testing"

	"courtside/internal/config"
	"courtside/internal/runstore"
)

// MustOpenStore opens a runstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("runstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a run row for tests using the provided store.
func NewRun(t testing.TB, store *runstore.Store, id, video string) *runstore.Run {
	t.Helper()

	run, err := store.CreateRun(context.Background(), runstore.Run{
		ID:        id,
		VideoPath: video,
		OutputDir: t.TempDir(),
		Players:   1,
		Roles:     []string{"coach"},
		Languages: []string{"en"},
	})
	if err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}
