package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external executable the analysis pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of looking a Requirement up on PATH.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Toolchain names the executables a run needs.
type Toolchain struct {
	FFmpeg     string
	FFprobe    string
	PoseWorker string
	// Transcribe adds the optional uvx launcher used for WhisperX.
	Transcribe bool
}

// Requirements lists the toolchain in check order.
func (tc Toolchain) Requirements() []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: tc.FFmpeg, Description: "Required for frame sampling"},
		{Name: "FFprobe", Command: ResolveFFprobe(tc.FFmpeg, tc.FFprobe), Description: "Required for media inspection"},
		{Name: "Pose worker", Command: tc.PoseWorker, Description: "Runs the pose estimation model"},
	}
	if tc.Transcribe {
		reqs = append(reqs, Requirement{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Required for WhisperX-driven transcription",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	switch _, err := exec.LookPath(req.Command); {
	case req.Command == "":
		status.Detail = "command not configured"
	case err != nil:
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
	default:
		status.Available = true
	}
	return status
}

// MissingRequired joins the details of unavailable, non-optional statuses.
// It returns nil when everything required is present.
func MissingRequired(statuses []Status) error {
	var errs []error
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			errs = append(errs, errors.New(s.Name+": "+s.Detail))
		}
	}
	return errors.Join(errs...)
}
