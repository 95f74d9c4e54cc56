package runstore

import (
	"database/sql"
	"errors"
	"time"
)

const runColumns = "id, video_path, output_dir, status, players, roles, languages, frames_sampled, frames_skipped, detection_gaps, player_misses, error_message, created_at, updated_at, finished_at"

const branchColumns = "id, run_id, branch_key, player, role, language, status, attempts, text_path, pdf_path, error_message, created_at, updated_at"

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (*Run, error) {
	var (
		run          Run
		status       string
		roles        string
		languages    string
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
		finishedRaw  sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&run.VideoPath,
		&run.OutputDir,
		&status,
		&run.Players,
		&roles,
		&languages,
		&run.FramesSampled,
		&run.FramesSkipped,
		&run.DetectionGaps,
		&run.PlayerMisses,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	run.Roles = splitList(roles)
	run.Languages = splitList(languages)
	run.ErrorMessage = errorMessage.String
	if t, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = t
	}
	if finishedRaw.Valid {
		if t, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return &run, nil
}

func scanBranch(row scanner) (*Branch, error) {
	var (
		b            Branch
		status       string
		textPath     sql.NullString
		pdfPath      sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := row.Scan(
		&b.ID,
		&b.RunID,
		&b.Key,
		&b.Player,
		&b.Role,
		&b.Language,
		&status,
		&b.Attempts,
		&textPath,
		&pdfPath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	b.Status = BranchStatus(status)
	b.TextPath = textPath.String
	b.PDFPath = pdfPath.String
	b.ErrorMessage = errorMessage.String
	if t, err := parseTimeString(createdRaw); err == nil {
		b.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		b.UpdatedAt = t
	}
	return &b, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
