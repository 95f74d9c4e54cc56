package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"courtside/internal/config"
)

var (
	// ErrNotFound is returned when a run or branch does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBranchFinished is returned when a terminal branch is finished again.
	ErrBranchFinished = errors.New("branch already finished")
	// ErrRunFinished is returned when a terminal run changes state again.
	ErrRunFinished = errors.New("run already finished")
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open connects to the run store configured in cfg, creating it if needed.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.RunStorePath())
}

// OpenPath connects to the SQLite database at path.
func OpenPath(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure run store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// CreateRun inserts a run in StatusInit.
func (s *Store) CreateRun(ctx context.Context, run Run) (*Run, error) {
	if run.ID == "" {
		return nil, errors.New("create run: id required")
	}
	ts := formatTime(s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, video_path, output_dir, status, players, roles, languages, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.VideoPath,
		run.OutputDir,
		StatusInit,
		run.Players,
		joinList(run.Roles),
		joinList(run.Languages),
		ts,
		ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, run.ID)
}

// SetRunStatus moves a non-terminal run to status. Moving to a terminal
// status records the finish time; errMessage is stored when non-empty.
func (s *Store) SetRunStatus(ctx context.Context, id string, status Status, errMessage string) error {
	now := formatTime(s.now())
	var finished any
	if status.IsTerminal() {
		finished = now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ?, finished_at = COALESCE(?, finished_at),
             error_message = COALESCE(?, error_message)
         WHERE id = ? AND status NOT IN (?, ?)`,
		status, now, finished, nullableString(errMessage), id, StatusDone, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return s.checkUpdated(ctx, res, "runs", id, ErrRunFinished)
}

// RecordSummary stores the sampling counters for a run.
func (s *Store) RecordSummary(ctx context.Context, id string, summary Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET frames_sampled = ?, frames_skipped = ?, detection_gaps = ?, player_misses = ?, updated_at = ? WHERE id = ?`,
		summary.FramesSampled, summary.FramesSkipped, summary.DetectionGaps, summary.PlayerMisses, formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("record run summary: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetRun fetches a run by identifier.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// FindRun resolves a full run ID or a unique prefix of one.
func (s *Store) FindRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	if run, err := s.GetRun(ctx, idOrPrefix); err == nil {
		return run, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()
	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run %s: %w", idOrPrefix, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run prefix %q is ambiguous", idOrPrefix)
	}
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// CreateBranches inserts pending rows for every branch in one transaction.
func (s *Store) CreateBranches(ctx context.Context, runID string, branches []Branch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin branch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := formatTime(s.now())
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO branches (run_id, branch_key, player, role, language, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare branch insert: %w", err)
	}
	defer stmt.Close()
	for _, b := range branches {
		if _, err := stmt.ExecContext(ctx, runID, b.Key, b.Player, b.Role, b.Language, BranchPending, ts, ts); err != nil {
			return fmt.Errorf("insert branch %s: %w", b.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit branches: %w", err)
	}
	return nil
}

// StartBranch marks a pending branch as generating.
func (s *Store) StartBranch(ctx context.Context, runID, key string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE branches SET status = ?, updated_at = ? WHERE run_id = ? AND branch_key = ? AND status = ?`,
		BranchGenerating, formatTime(s.now()), runID, key, BranchPending,
	)
	if err != nil {
		return fmt.Errorf("start branch: %w", err)
	}
	return s.checkBranchUpdated(ctx, res, runID, key)
}

// FinishBranch moves a branch to its terminal state. A branch can finish once.
func (s *Store) FinishBranch(ctx context.Context, runID, key string, result BranchResult) error {
	if !result.Status.IsTerminal() {
		return fmt.Errorf("finish branch %s: status %q is not terminal", key, result.Status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE branches
         SET status = ?, attempts = ?, text_path = ?, pdf_path = ?, error_message = ?, updated_at = ?
         WHERE run_id = ? AND branch_key = ? AND status NOT IN (?, ?)`,
		result.Status,
		result.Attempts,
		nullableString(result.TextPath),
		nullableString(result.PDFPath),
		nullableString(result.Error),
		formatTime(s.now()),
		runID, key, BranchDone, BranchFailed,
	)
	if err != nil {
		return fmt.Errorf("finish branch: %w", err)
	}
	return s.checkBranchUpdated(ctx, res, runID, key)
}

// Branches lists a run's branches in key order.
func (s *Store) Branches(ctx context.Context, runID string) ([]*Branch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+branchColumns+` FROM branches WHERE run_id = ? ORDER BY player, branch_key`, runID)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()
	var out []*Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}
	return out, nil
}

// BranchCounts returns the number of branches per status for a run.
func (s *Store) BranchCounts(ctx context.Context, runID string) (map[BranchStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM branches WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("count branches: %w", err)
	}
	defer rows.Close()
	counts := make(map[BranchStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan branch count: %w", err)
		}
		counts[BranchStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *Store) checkUpdated(ctx context.Context, res sql.Result, table, id string, terminal error) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s %s: %w", table, id, err)
	}
	if exists == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", table, id, terminal)
}

func (s *Store) checkBranchUpdated(ctx context.Context, res sql.Result, runID, key string) error {
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return nil
	}
	var status sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT status FROM branches WHERE run_id = ? AND branch_key = ?`, runID, key).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("branch %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check branch %s: %w", key, err)
	}
	if BranchStatus(status.String).IsTerminal() {
		return fmt.Errorf("branch %s: %w", key, ErrBranchFinished)
	}
	return fmt.Errorf("branch %s: unexpected status %q", key, status.String)
}
