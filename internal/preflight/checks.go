package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"courtside/internal/config"
	"courtside/internal/deps"
	"courtside/internal/services"
	"courtside/internal/services/llm"
)

const llmCheckTimeout = 30 * time.Second

// CheckLLM verifies that the LLM API is reachable and the key is valid with a
// single request.
func CheckLLM(ctx context.Context, name string, settings config.LLM) Result {
	if settings.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	client := llm.NewClient(llm.FromSettings(settings))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries required by cfg. The
// analyze command runs the same check before sampling.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(Toolchain(cfg).Requirements())
}

// Toolchain maps cfg onto the executables a run shells out to.
func Toolchain(cfg *config.Config) deps.Toolchain {
	tc := deps.Toolchain{
		FFmpeg:     cfg.Analysis.FFmpegBinary,
		FFprobe:    cfg.Analysis.FFprobeBinary,
		Transcribe: cfg.Transcript.Enabled,
	}
	if len(cfg.Pose.WorkerCommand) > 0 {
		tc.PoseWorker = cfg.Pose.WorkerCommand[0]
	}
	return tc
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, services.ErrTimeout) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
