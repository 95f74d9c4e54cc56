package runstore

import (
	"strings"
	"time"
)

// Status is a run's workflow state.
type Status string

const (
	StatusInit           Status = "init"
	StatusSampling       Status = "sampling"
	StatusPoseExtraction Status = "pose_extraction"
	StatusAggregating    Status = "aggregating"
	StatusSynthesizing   Status = "synthesizing"
	StatusDone           Status = "done"
	StatusFailed         Status = "failed"
)

// IsTerminal reports whether s ends the run.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// BranchStatus is a report branch's state.
type BranchStatus string

const (
	BranchPending    BranchStatus = "pending"
	BranchGenerating BranchStatus = "generating"
	BranchDone       BranchStatus = "done"
	BranchFailed     BranchStatus = "failed"
)

// IsTerminal reports whether s ends the branch.
func (s BranchStatus) IsTerminal() bool {
	return s == BranchDone || s == BranchFailed
}

// Run is one analysis of one video.
type Run struct {
	ID            string
	VideoPath     string
	OutputDir     string
	Status        Status
	Players       int
	Roles         []string
	Languages     []string
	FramesSampled int
	FramesSkipped int
	DetectionGaps int
	PlayerMisses  int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	FinishedAt    *time.Time
}

// Duration returns the run's wall time, measured to now while it is active.
func (r Run) Duration() time.Duration {
	end := time.Now().UTC()
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	if r.CreatedAt.IsZero() || end.Before(r.CreatedAt) {
		return 0
	}
	return end.Sub(r.CreatedAt)
}

// Branch is one (player, role, language) report of a run.
type Branch struct {
	ID           int64
	RunID        string
	Key          string
	Player       int
	Role         string
	Language     string
	Status       BranchStatus
	Attempts     int
	TextPath     string
	PDFPath      string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary holds the counters recorded when a run finishes.
type Summary struct {
	FramesSampled int
	FramesSkipped int
	DetectionGaps int
	PlayerMisses  int
}

// BranchResult is the terminal outcome of a branch.
type BranchResult struct {
	Status   BranchStatus
	Attempts int
	TextPath string
	PDFPath  string
	Error    string
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
