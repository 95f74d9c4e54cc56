package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"courtside/internal/services"
)

const (
	defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout  = 60 * time.Second
	coachPersona    = "You are an elite badminton coach analysing a player's match video and on-court audio. " +
		"Use only the data provided. Follow the requested section headings exactly."
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	SystemPrompt   string
	Temperature    float64
	MaxTokens      int
	TimeoutSeconds int
}

// Client sends report prompts to an OpenRouter-compatible chat endpoint.
// It performs one HTTP exchange per call.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	cfg.BaseURL = orDefault(cfg.BaseURL, defaultEndpoint)
	cfg.SystemPrompt = orDefault(cfg.SystemPrompt, coachPersona)

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends prompt as the user message and returns the completion text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "llm generate"
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", services.Wrap(services.ErrGeneration, "synthesis", op, "prompt required", nil)
	}
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "synthesis", op, "api key required", nil)
	}
	text, err := c.exchange(ctx, chatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.SystemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", classify(ctx, op, err)
	}
	return text, nil
}

// HealthCheck asks the model for a tiny JSON acknowledgement to prove the key
// and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "llm health"
	if c.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, "preflight", op, "api key required", nil)
	}
	text, err := c.exchange(ctx, chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "Reply with JSON only."},
			{Role: "user", Content: `Reply with {"ok":true}`},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return classify(ctx, op, err)
	}
	var ack struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal([]byte(jsonObject(text)), &ack); err != nil {
		return services.Wrap(services.ErrGeneration, "preflight", op, "unreadable reply "+snippet(text), err)
	}
	if !ack.OK {
		return services.Wrap(services.ErrGeneration, "preflight", op, "model did not acknowledge", nil)
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, payload chatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", newStatusError(resp, raw)
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response %s: %w", snippet(string(raw)), err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	text, finish, refusal := decoded.text()
	if text == "" {
		return "", &emptyReplyError{FinishReason: finish, Refusal: refusal}
	}
	return text, nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
