package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"courtside/internal/artifact"
	"courtside/internal/config"
	"courtside/internal/logging"
	"courtside/internal/metrics"
	"courtside/internal/notifications"
	"courtside/internal/report"
	"courtside/internal/runstore"
	"courtside/internal/services"
)

// buildRequests expands players × roles × languages in that nesting order.
func buildRequests(rc config.RunConfig) ([]report.Request, error) {
	roles := make([]report.Role, 0, len(rc.Roles))
	for _, name := range rc.Roles {
		role, err := report.ParseRole(name)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "synthesizing", "build requests", "invalid role", err)
		}
		roles = append(roles, role)
	}
	requests := make([]report.Request, 0, rc.PlayerCount*len(roles)*len(rc.Languages))
	for player := 0; player < rc.PlayerCount; player++ {
		for _, role := range roles {
			for _, lang := range rc.Languages {
				requests = append(requests, report.Request{Player: player, Role: role, Language: lang})
			}
		}
	}
	return requests, nil
}

// limitedGenerator bounds in-flight Generate calls across branches.
type limitedGenerator struct {
	gen report.Generator
	sem *semaphore.Weighted
}

func newLimitedGenerator(gen report.Generator, limit int) *limitedGenerator {
	if limit <= 0 {
		limit = 1
	}
	return &limitedGenerator{gen: gen, sem: semaphore.NewWeighted(int64(limit))}
}

func (l *limitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.gen.Generate(ctx, prompt)
}

// fanOut runs one branch per request. The returned slice has one outcome per
// request, in request order.
func (r *Runner) fanOut(ctx context.Context, rc config.RunConfig, playerMetrics map[int]metrics.PlayerMetrics, text string, writer *artifact.Writer) []BranchOutcome {
	scope := r.beginStage(ctx, "synthesizing")
	ctx = scope.ctx

	requests, err := buildRequests(rc)
	if err != nil {
		scope.fail(err)
		return nil
	}
	outcomes := make([]BranchOutcome, len(requests))
	r.createBranches(ctx, requests)

	synth := report.NewSynthesizer(newLimitedGenerator(r.deps.Generator, rc.GenerationConcurrency), report.Options{
		MaxRetries:       rc.MaxRetries,
		RetryBackoffBase: rc.RetryBackoffBase,
		RetryBackoffMax:  rc.RetryBackoffMax,
		ExcerptChars:     rc.TranscriptExcerptChars,
		Logger:           r.deps.Logger,
	})

	var (
		mu   sync.Mutex
		done int
	)
	finished := func() {
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		r.progress(Progress{Stage: StageSynthesis, BranchesDone: n, BranchesTotal: len(requests)})
	}

	// Branch errors stay in their outcome, so the group never fails.
	var g errgroup.Group
	g.SetLimit(max(r.deps.BranchWorkers, 1))
	fed := 0
	for i, req := range requests {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			m, ok := playerMetrics[req.Player]
			if !ok {
				m = metrics.PlayerMetrics{Player: req.Player}
			}
			outcomes[i] = r.runBranch(ctx, synth, writer, m, text, req)
			finished()
			return nil
		})
		fed++
	}
	_ = g.Wait()

	for i := fed; i < len(requests); i++ {
		outcomes[i] = r.cancelBranch(ctx, requests[i], 0, ctx.Err())
		finished()
	}

	produced := 0
	for _, o := range outcomes {
		if !o.Failed {
			produced++
		}
	}
	if ctx.Err() != nil {
		scope.fail(ctx.Err())
	} else {
		scope.complete(
			logging.Int("issued", len(requests)),
			logging.Int("produced", produced),
			logging.Int("failed", len(requests)-produced),
		)
	}
	return outcomes
}

// runBranch synthesizes and persists one report. Errors stay in the outcome.
func (r *Runner) runBranch(ctx context.Context, synth *report.Synthesizer, writer *artifact.Writer, m metrics.PlayerMetrics, text string, req report.Request) BranchOutcome {
	key := req.Key()
	ctx = services.WithBranch(ctx, key)
	logger := logging.WithContext(ctx, r.logger)
	runID, _ := services.RunIDFromContext(ctx)

	if ctx.Err() != nil {
		return r.cancelBranch(ctx, req, 0, ctx.Err())
	}
	r.storeStartBranch(ctx, runID, key)

	art, genErr := synth.Synthesize(ctx, m, text, req.Role, req.Language)
	if genErr != nil && (errors.Is(genErr, context.Canceled) || errors.Is(genErr, context.DeadlineExceeded)) {
		return r.cancelBranch(ctx, req, art.Attempts, genErr)
	}

	outcome := BranchOutcome{Request: req, Attempts: art.Attempts, Failed: art.Failed, Err: genErr}
	paths, writeErr := writer.Write(ctx, art)
	outcome.Paths = paths
	if writeErr != nil {
		outcome.Failed = true
		outcome.Err = errors.Join(genErr, services.Wrap(services.ErrExternalTool, "synthesizing", "write artifact",
			fmt.Sprintf("cannot write %s", key), writeErr))
	}

	result := runstore.BranchResult{
		Status:   runstore.BranchDone,
		Attempts: outcome.Attempts,
		TextPath: paths.Text,
		PDFPath:  paths.PDF,
	}
	if outcome.Failed {
		result.Status = runstore.BranchFailed
		if outcome.Err != nil {
			result.Error = outcome.Err.Error()
		}
		logging.WarnWithContext(logger, "report branch failed", "branch_failed",
			logging.Int("attempts", outcome.Attempts),
			logging.Error(outcome.Err),
			logging.String(logging.FieldImpact, "placeholder report written in place of "+key),
			logging.String(logging.FieldErrorHint, failureHint(outcome.Err)),
		)
		r.notify(ctx, notifications.EventBranchFailed, notifications.Payload{
			"runID":  runID,
			"branch": key,
			"error":  result.Error,
		})
	} else {
		logger.Info("report branch completed",
			logging.String(logging.FieldEventType, "branch_complete"),
			logging.Int("attempts", outcome.Attempts),
			logging.String("text_path", paths.Text),
		)
	}
	r.storeFinishBranch(ctx, runID, key, result)
	return outcome
}

// cancelBranch records a branch that ended because the run was cancelled.
// Nothing is written to the output directory for it.
func (r *Runner) cancelBranch(ctx context.Context, req report.Request, attempts int, cause error) BranchOutcome {
	runID, _ := services.RunIDFromContext(ctx)
	r.storeFinishBranch(ctx, runID, req.Key(), runstore.BranchResult{
		Status:   runstore.BranchFailed,
		Attempts: attempts,
		Error:    "cancelled",
	})
	return BranchOutcome{Request: req, Attempts: attempts, Failed: true, Err: cause}
}

func (r *Runner) createBranches(ctx context.Context, requests []report.Request) {
	if r.deps.Store == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	rows := make([]runstore.Branch, 0, len(requests))
	for _, req := range requests {
		rows = append(rows, runstore.Branch{
			Key:      req.Key(),
			Player:   req.Player,
			Role:     string(req.Role),
			Language: req.Language,
		})
	}
	if err := r.deps.Store.CreateBranches(context.WithoutCancel(ctx), runID, rows); err != nil {
		r.storeWarn(ctx, "branch rows not persisted", err)
	}
}

func (r *Runner) storeStartBranch(ctx context.Context, runID, key string) {
	if r.deps.Store == nil {
		return
	}
	if err := r.deps.Store.StartBranch(context.WithoutCancel(ctx), runID, key); err != nil {
		r.storeWarn(ctx, "branch start not persisted", err)
	}
}

func (r *Runner) storeFinishBranch(ctx context.Context, runID, key string, result runstore.BranchResult) {
	if r.deps.Store == nil {
		return
	}
	if err := r.deps.Store.FinishBranch(context.WithoutCancel(ctx), runID, key, result); err != nil {
		r.storeWarn(ctx, "branch result not persisted", err)
	}
}

func (r *Runner) storeWarn(ctx context.Context, msg string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), msg, "run_store_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check run store database access"),
		logging.String(logging.FieldImpact, "runs show may be incomplete for this run"),
	)
}
