package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"courtside/internal/config"
)

const userAgent = "Courtside-Go/0.1.0"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	cfg      config.Notifications
}

func newNtfyService(cfg config.Notifications) *ntfyService {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: strings.TrimSpace(cfg.NtfyTopic),
		client:   &http.Client{Timeout: timeout},
		cfg:      cfg,
	}
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	if !allowed(n.cfg, event) {
		return nil
	}
	msg, ok := formatNtfy(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) Close() error { return nil }

func formatNtfy(event Event, data Payload) (payload, bool) {
	video := stringValue(data, "video")
	switch event {
	case EventRunStarted:
		return payload{
			title:   "Courtside - Analysis Started",
			message: fmt.Sprintf("🏸 Analysing %s (%d reports requested)", video, intValue(data, "reports")),
			tags:    []string{"courtside", "run", "started"},
		}, true
	case EventRunCompleted:
		reports := intValue(data, "reports")
		failed := intValue(data, "failed")
		duration := formatDuration(durationValue(data, "duration"))
		title := "Courtside - Reports Ready"
		message := fmt.Sprintf("✅ %d reports ready for %s in %s", reports, video, duration)
		if failed > 0 {
			title = "Courtside - Reports Ready (with errors)"
			message = fmt.Sprintf("✅ %d reports ready, %d failed for %s in %s", reports-failed, failed, video, duration)
		}
		return payload{
			title:   title,
			message: message,
			tags:    []string{"courtside", "run", "completed"},
		}, true
	case EventRunFailed:
		var b strings.Builder
		b.WriteString("❌ Analysis failed")
		if video != "" {
			b.WriteString(" for ")
			b.WriteString(video)
		}
		if stage := stringValue(data, "stage"); stage != "" {
			b.WriteString(" during ")
			b.WriteString(stage)
		}
		b.WriteString(": ")
		if errText := stringValue(data, "error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return payload{
			title:    "Courtside - Analysis Failed",
			message:  b.String(),
			tags:     []string{"courtside", "error", "alert"},
			priority: "high",
		}, true
	case EventBranchFailed:
		return payload{
			title:   "Courtside - Report Failed",
			message: fmt.Sprintf("⚠️ Report %s failed: %s", stringValue(data, "branch"), stringValue(data, "error")),
			tags:    []string{"courtside", "report", "failed"},
		}, true
	case EventTest:
		return payload{
			title:    "Courtside - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"courtside", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
