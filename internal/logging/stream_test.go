package logging_test

import (
	"log/slog"
	"testing"

	"reframe/internal/logging"
)

func TestStreamHubRingAndSince(t *testing.T) {
	hub := logging.NewStreamHub(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		hub.Publish(logging.LogEvent{Message: msg})
	}

	tail := hub.Tail(0)
	if len(tail) != 3 || tail[0].Message != "b" || tail[2].Message != "d" {
		t.Fatalf("unexpected tail: %+v", tail)
	}

	events, next := hub.Since(2, 10)
	if next != 4 {
		t.Fatalf("expected next sequence 4, got %d", next)
	}
	if len(events) != 2 || events[0].Sequence != 3 {
		t.Fatalf("unexpected events since 2: %+v", events)
	}

	events, next = hub.Since(0, 1)
	if len(events) != 1 || events[0].Message != "b" {
		t.Fatalf("expected limit to apply from the oldest retained event, got %+v", events)
	}
	if next != 2 {
		t.Fatalf("expected truncated page to resume after sequence 2, got %d", next)
	}
	if cursor := hub.Cursor(); cursor != 4 {
		t.Fatalf("expected cursor 4, got %d", cursor)
	}
}

func TestHubHandlerCapturesContextFields(t *testing.T) {
	hub := logging.NewStreamHub(4)
	logger := slog.New(hub.Handler(slog.LevelInfo)).With(logging.String(logging.FieldComponent, "worker"))
	logger.Debug("hidden")
	logger.Info("claimed", logging.Int64(logging.FieldJobID, 9), logging.String(logging.FieldStage, "planning"), logging.Int("workers", 2))

	events := hub.Tail(0)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	evt := events[0]
	if evt.Component != "worker" || evt.JobID != 9 || evt.Stage != "planning" || evt.Fields["workers"] != "2" {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

func TestTeeHandlerCollapsesNil(t *testing.T) {
	if _, ok := logging.TeeHandler(nil, nil).(logging.NoopHandler); !ok {
		t.Fatal("expected noop handler when no handlers are live")
	}
}
