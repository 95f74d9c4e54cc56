package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"courtside/internal/services"
)

func completionHandler(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestClientGenerateSendsPromptAndHeaders(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected authorization %q", auth)
		}
		if title := r.Header.Get("X-Title"); title != "courtside" {
			t.Errorf("unexpected title %q", title)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, "## Summary\nGood match.")(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL, Model: "demo-model", Title: "courtside"})
	text, err := client.Generate(context.Background(), "Write the report")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(text, "Good match.") {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != "demo-model" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[1].Content != "Write the report" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if got.ResponseFormat != nil {
		t.Fatalf("narrative requests must not force JSON, got %v", got.ResponseFormat)
	}
}

func TestClientGenerateClassifiesStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{status: http.StatusTooManyRequests, retryable: true},
		{status: http.StatusBadGateway, retryable: true},
		{status: http.StatusRequestTimeout, retryable: true},
		{status: http.StatusUnauthorized, retryable: false},
		{status: http.StatusBadRequest, retryable: false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
			_, err := client.Generate(context.Background(), "prompt")
			if err == nil {
				t.Fatal("expected error")
			}
			if services.IsRetryable(err) != tt.retryable {
				t.Fatalf("IsRetryable = %v, want %v (err=%v)", !tt.retryable, tt.retryable, err)
			}
			if !tt.retryable && !errors.Is(err, services.ErrGeneration) {
				t.Fatalf("expected permanent failure marked as generation error, got %v", err)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Fatalf("expected StatusError with %d, got %v", tt.status, err)
			}
			if statusErr.RetryAfter() != 2*time.Second {
				t.Fatalf("expected Retry-After of 2s, got %s", statusErr.RetryAfter())
			}
		})
	}
}

func TestClientGenerateEmptyContentIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), "prompt")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(err.Error(), `finish_reason="length"`) {
		t.Fatalf("expected finish reason in error, got %v", err)
	}
}

func TestClientGenerateAcceptsDeltaAndLegacyText(t *testing.T) {
	bodies := []string{
		`{"choices":[{"delta":{"content":"from delta"}}]}`,
		`{"choices":[{"text":"from text"}]}`,
	}
	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
		text, err := client.Generate(context.Background(), "prompt")
		server.Close()
		if err != nil {
			t.Fatalf("Generate(%s): %v", body, err)
		}
		if !strings.HasPrefix(text, "from ") {
			t.Fatalf("unexpected text %q", text)
		}
	}
}

func TestClientGenerateTimeoutIsRetryable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL},
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := client.Generate(context.Background(), "prompt")
	if !errors.Is(err, services.ErrTimeout) || !services.IsRetryable(err) {
		t.Fatalf("expected retryable timeout, got %v", err)
	}
}

func TestClientGenerateCancelledContextIsNotWrapped(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "unused"))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.Generate(ctx, "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("cancellation must not be retryable")
	}
}

func TestClientGenerateRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.Generate(context.Background(), "prompt"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientHealthCheck(t *testing.T) {
	for _, content := range []string{`{"ok":true}`, "```json\n{\"ok\":true}\n```"} {
		server := httptest.NewServer(completionHandler(t, content))
		client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
		err := client.HealthCheck(context.Background())
		server.Close()
		if err != nil {
			t.Fatalf("HealthCheck(%q): %v", content, err)
		}
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\nplain\n```":         "plain",
		"no fence":                "no fence",
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
