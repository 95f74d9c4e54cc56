package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courtside/internal/config"
	"courtside/internal/deps"
	"courtside/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Options selects the checks RunAll performs beyond the always-on ones.
type Options struct {
	// CheckLLM issues a live health-check request to the generation API.
	CheckLLM bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, fromStatus(status))
	}

	results = append(results,
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	)

	if opts.CheckLLM {
		results = append(results, CheckLLM(ctx, "Generation LLM", cfg.LLM))
	} else if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		results = append(results, Result{Name: "Generation LLM", Detail: "API key missing"})
	}
	return results
}

// Err summarizes failed required checks as a configuration error, or nil.
func Err(results []Result) error {
	var problems []string
	for _, r := range results {
		if r.Passed || r.Optional {
			continue
		}
		problems = append(problems, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(problems) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check", "", errors.New(strings.Join(problems, "; ")))
}

func fromStatus(status deps.Status) Result {
	detail := status.Detail
	if status.Available {
		detail = status.Command
	}
	return Result{
		Name:     status.Name,
		Passed:   status.Available,
		Optional: status.Optional,
		Detail:   detail,
	}
}
