package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"reframe/internal/queue"
	"reframe/internal/services"
	"reframe/internal/workflow"
)

func TestFromQueueItemCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item := &queue.Item{
		ID:            7,
		Title:         "Beach Day",
		OutputID:      "abc",
		SourcePath:    "/uploads/beach.mp4",
		AspectRatio:   "9:16",
		Resolution:    "1080p",
		Format:        "mp4",
		Platform:      "tiktok",
		Status:        queue.StatusCompleted,
		SourceWidth:   1920,
		SourceHeight:  1080,
		TargetWidth:   608,
		TargetHeight:  1080,
		OutputPath:    "/out/output_abc.mp4",
		CaptionPath:   "/out/output_abc.srt",
		CaptionStatus: "generated",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	dto := FromQueueItem(item)
	if dto.Platform != "TikTok" {
		t.Fatalf("platform not formatted: %q", dto.Platform)
	}
	if dto.Target == nil || dto.Target.Label != "608x1080" {
		t.Fatalf("unexpected target: %+v", dto.Target)
	}
	if dto.OutputURL != "/api/jobs/7/output" || dto.CaptionURL != "/api/jobs/7/captions" {
		t.Fatalf("unexpected urls: %q %q", dto.OutputURL, dto.CaptionURL)
	}
	if dto.Error != nil {
		t.Fatalf("completed job should not carry an error")
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected timestamp %q", dto.CreatedAt)
	}
}

func TestFromQueueItemFailed(t *testing.T) {
	item := &queue.Item{ID: 3, Status: queue.StatusFailed, ErrorStage: "plan", ErrorKind: "degenerate_geometry", ErrorMessage: "too small", OutputPath: "/x"}
	dto := FromQueueItem(item)
	if dto.Error == nil || dto.Error.Kind != "degenerate_geometry" || dto.Error.Retryable {
		t.Fatalf("unexpected error payload: %+v", dto.Error)
	}
	if dto.OutputURL != "" {
		t.Fatalf("failed job must not expose an output url")
	}
	if dto.Source != nil {
		t.Fatalf("expected no source geometry")
	}
}

func TestFromStatusSummaryFillsStats(t *testing.T) {
	wf := FromStatusSummary(workflow.StatusSummary{Running: true, Workers: 2, QueueStats: map[queue.Status]int{queue.StatusPending: 3}})
	if wf.QueueStats["pending"] != 3 || wf.QueueStats["completed"] != 0 {
		t.Fatalf("unexpected stats: %v", wf.QueueStats)
	}
	if _, ok := wf.QueueStats["failed"]; !ok {
		t.Fatalf("expected every status key")
	}
	if wf.ActiveJobs == nil {
		t.Fatalf("active jobs should encode as an empty list")
	}
}

type stubReader struct {
	items []*queue.Item
}

func (s *stubReader) List(context.Context, ...queue.Status) ([]*queue.Item, error) {
	return s.items, nil
}

func (s *stubReader) Stats(context.Context) (map[queue.Status]int, error) {
	return map[queue.Status]int{queue.StatusPending: len(s.items)}, nil
}

func (s *stubReader) GetByID(_ context.Context, id int64) (*queue.Item, error) {
	for _, item := range s.items {
		if item.ID == id {
			return item, nil
		}
	}
	return nil, nil
}

func TestJobCatalog(t *testing.T) {
	catalog := NewJobCatalog(&stubReader{items: []*queue.Item{{ID: 1, Title: "Example", Status: queue.StatusPending}}})
	jobs, err := catalog.List(context.Background(), []string{"pending, failed"})
	if err != nil || len(jobs) != 1 || jobs[0].Title != "Example" {
		t.Fatalf("List = %+v, %v", jobs, err)
	}
	job, err := catalog.Describe(context.Background(), 1)
	if err != nil || job == nil || job.Status != "pending" {
		t.Fatalf("Describe = %+v, %v", job, err)
	}
	missing, err := catalog.Describe(context.Background(), 99)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing job, got %+v %v", missing, err)
	}
	stats, err := catalog.Stats(context.Background())
	if err != nil || stats["pending"] != 1 || stats["failed"] != 0 {
		t.Fatalf("Stats = %v, %v", stats, err)
	}
}

func TestParseStatusFilter(t *testing.T) {
	statuses, err := ParseStatusFilter([]string{"pending,failed", " ", "completed"})
	if err != nil || len(statuses) != 3 || statuses[2] != queue.StatusCompleted {
		t.Fatalf("ParseStatusFilter = %v, %v", statuses, err)
	}
	_, err = ParseStatusFilter([]string{"pending,bogus"})
	if !errors.Is(err, services.ErrInvalidSpec) {
		t.Fatalf("expected invalid spec error, got %v", err)
	}
}
