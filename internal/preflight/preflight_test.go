package preflight

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courtside/internal/services"
	"courtside/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func healthServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": `{"ok":true}`}}},
		})
	}))
}

func TestCheckLLM(t *testing.T) {
	srv := healthServer(t, http.StatusOK)
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.LLM.BaseURL = srv.URL
	if result := CheckLLM(context.Background(), "LLM", cfg.LLM); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckLLM_BadKey(t *testing.T) {
	srv := healthServer(t, http.StatusUnauthorized)
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.LLM.BaseURL = srv.URL
	if result := CheckLLM(context.Background(), "LLM", cfg.LLM); result.Passed {
		t.Fatal("expected failure for rejected key")
	}
}

func TestCheckLLM_MissingKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLLMKey(""))
	result := CheckLLM(context.Background(), "LLM", cfg.LLM)
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, Options{}); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_StubbedEnvironmentPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPoseWorker("courtside-pose", "--serve"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, Options{})
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if err := Err(results); err != nil {
		t.Fatalf("Err: %v", err)
	}
}

func TestRunAll_ReportsMissingWorkerAsConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Pose.WorkerCommand = []string{"definitely-not-a-pose-worker"}
	cfg.Transcript.Enabled = true
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, Options{})
	err := Err(results)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Pose worker") {
		t.Fatalf("expected worker in error, got %v", err)
	}
	if strings.Contains(err.Error(), "uvx") {
		t.Fatalf("optional uvx check must not fail the run: %v", err)
	}
}

func TestRunAll_IncludesLLMWhenRequested(t *testing.T) {
	srv := healthServer(t, http.StatusOK)
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithPoseWorker("pose"))
	cfg.LLM.BaseURL = srv.URL
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, Options{CheckLLM: true})
	found := false
	for _, r := range results {
		if r.Name == "Generation LLM" {
			found = true
			if !r.Passed {
				t.Errorf("LLM check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected LLM check in results")
	}
}
