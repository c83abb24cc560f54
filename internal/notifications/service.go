package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"reframe/internal/config"
)

const userAgent = "reframe/1"

// Event names a notification type.
type Event string

const (
	EventJobCompleted   Event = "job_completed"
	EventJobFailed      Event = "job_failed"
	EventBatchCompleted Event = "batch_completed"
	EventTest           Event = "test"
)

// Payload carries the event fields used to build the message.
type Payload map[string]string

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: cfg.NotificationTimeout()},
		onSuccess: cfg.Notifications.OnSuccess,
		onFailure: cfg.Notifications.OnFailure,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
	onFailure bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// format builds the message for event. It reports false for events the
// config suppresses.
func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	get := func(key string) string { return strings.TrimSpace(payload[key]) }

	switch event {
	case EventJobCompleted:
		if !n.onSuccess {
			return message{}, false
		}
		body := fmt.Sprintf("✅ Ready: %s", get("title"))
		if target := get("target"); target != "" {
			body += " at " + target
		}
		if output := get("output"); output != "" {
			body += "\nFile: " + filepath.Base(output)
		}
		if note := get("caption_note"); note != "" {
			body += "\nCaptions: " + note
		}
		return message{title: "Reframe - Job Complete", body: body, tags: []string{"reframe", "job", "completed"}}, true

	case EventJobFailed:
		if !n.onFailure {
			return message{}, false
		}
		var b strings.Builder
		b.WriteString("❌ Failed: ")
		b.WriteString(get("title"))
		if stage := get("stage"); stage != "" {
			b.WriteString(" at ")
			b.WriteString(stage)
		}
		if kind := get("kind"); kind != "" {
			b.WriteString(" (" + kind + ")")
		}
		if errText := get("error"); errText != "" {
			b.WriteString(": ")
			b.WriteString(errText)
		}
		return message{title: "Reframe - Job Failed", body: b.String(), tags: []string{"reframe", "job", "failed"}, priority: "high"}, true

	case EventBatchCompleted:
		failed := get("failed")
		if failed != "" && failed != "0" {
			if !n.onFailure {
				return message{}, false
			}
			return message{
				title: "Reframe - Batch Complete (with errors)",
				body:  fmt.Sprintf("Batch finished: %s succeeded, %s failed in %s", get("succeeded"), failed, get("duration")),
				tags:  []string{"reframe", "batch", "failed"},
			}, true
		}
		if !n.onSuccess {
			return message{}, false
		}
		return message{
			title: "Reframe - Batch Complete",
			body:  fmt.Sprintf("Batch finished: %s jobs in %s", get("succeeded"), get("duration")),
			tags:  []string{"reframe", "batch", "completed"},
		}, true

	case EventTest:
		return message{title: "Reframe - Test", body: "🧪 Notification system test", tags: []string{"reframe", "test"}, priority: "low"}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
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
