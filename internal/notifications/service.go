package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"broll/internal/config"
)

const userAgent = "broll/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]string

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, data Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	msg, ok := format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format renders event into an ntfy message. Unknown events are skipped.
func format(event Event, data Payload) (message, bool) {
	id := strings.TrimSpace(data["taskID"])
	source := strings.TrimSpace(data["source"])
	if source == "" {
		source = id
	}
	switch event {
	case EventJobCompleted:
		body := fmt.Sprintf("✅ B-roll ready: %s", source)
		if elapsed := strings.TrimSpace(data["elapsed"]); elapsed != "" {
			body += fmt.Sprintf(" (%s)", elapsed)
		}
		if output := strings.TrimSpace(data["output"]); output != "" {
			body += "\nOutput: " + output
		}
		return message{
			title: "broll - Complete",
			body:  body,
			tags:  []string{"broll", "job", "completed"},
		}, true
	case EventJobFailed:
		reason := strings.TrimSpace(data["error"])
		if reason == "" {
			reason = "unknown"
		}
		tags := []string{"broll", "job", "failed"}
		if kind := strings.TrimSpace(data["errorKind"]); kind != "" {
			tags = append(tags, kind)
		}
		priority := "high"
		if data["errorKind"] == "cancelled" {
			priority = ""
		}
		return message{
			title:    "broll - Failed",
			body:     fmt.Sprintf("❌ Job %s failed: %s", source, reason),
			tags:     tags,
			priority: priority,
		}, true
	case EventTest:
		return message{
			title:    "broll - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"broll", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
