package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"courtside/internal/logging"
	"courtside/internal/runstore"
)

// transitions lists the forward moves allowed from each non-terminal status.
// FAILED is additionally reachable from every non-terminal status. A video
// that yields no frames moves from SAMPLING straight to AGGREGATING.
var transitions = map[runstore.Status][]runstore.Status{
	runstore.StatusInit:           {runstore.StatusSampling},
	runstore.StatusSampling:       {runstore.StatusPoseExtraction, runstore.StatusAggregating},
	runstore.StatusPoseExtraction: {runstore.StatusAggregating},
	runstore.StatusAggregating:    {runstore.StatusSynthesizing},
	runstore.StatusSynthesizing:   {runstore.StatusDone},
}

// CanTransition reports whether a run may move from one status to another.
func CanTransition(from, to runstore.Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == runstore.StatusFailed {
		return true
	}
	return slices.Contains(transitions[from], to)
}

// runState tracks one run's status and mirrors it into the run store.
type runState struct {
	id     string
	store  *runstore.Store
	logger *slog.Logger

	mu      sync.Mutex
	status  runstore.Status
	history []runstore.Status
}

func newRunState(id string, store *runstore.Store, logger *slog.Logger) *runState {
	return &runState{
		id:      id,
		store:   store,
		logger:  logger,
		status:  runstore.StatusInit,
		history: []runstore.Status{runstore.StatusInit},
	}
}

func (s *runState) current() runstore.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *runState) visited() []runstore.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]runstore.Status(nil), s.history...)
}

// advance moves the run to status and persists it. errMessage is stored only
// for terminal statuses.
func (s *runState) advance(ctx context.Context, to runstore.Status, errMessage string) error {
	s.mu.Lock()
	from := s.status
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return fmt.Errorf("run %s: invalid transition %s -> %s", s.id, from, to)
	}
	s.status = to
	s.history = append(s.history, to)
	s.mu.Unlock()

	logging.WithContext(ctx, s.logger).Debug("run status changed",
		logging.String("from", string(from)),
		logging.String("to", string(to)),
	)
	if s.store == nil {
		return nil
	}
	// Terminal writes must land even when the run was cancelled.
	persistCtx := ctx
	if to.IsTerminal() {
		persistCtx = context.WithoutCancel(ctx)
	}
	if err := s.store.SetRunStatus(persistCtx, s.id, to, errMessage); err != nil {
		return fmt.Errorf("persist run status %s: %w", to, err)
	}
	return nil
}
