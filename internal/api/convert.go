package api

import (
	"fmt"
	"time"

	"reframe/internal/deps"
	"reframe/internal/geometry"
	"reframe/internal/logging"
	"reframe/internal/queue"
	"reframe/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) Job {
	if item == nil {
		return Job{}
	}
	dto := Job{
		ID:          item.ID,
		Title:       item.Title,
		OutputID:    item.OutputID,
		SourcePath:  item.SourcePath,
		AspectRatio: item.AspectRatio,
		Resolution:  item.Resolution,
		Format:      item.Format,
		AutoCaption: item.AutoCaption,
		Platform:    geometry.PlatformName(item.Platform),
		VideoType:   item.VideoType,
		Status:      string(item.Status),
		Progress: JobProgress{
			Stage:   item.ProgressStage,
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
		CaptionStatus: item.CaptionStatus,
		CaptionNote:   item.CaptionNote,
		CreatedAt:     FormatTime(item.CreatedAt),
		UpdatedAt:     FormatTime(item.UpdatedAt),
	}
	dto.Source = geometryOf(item.SourceWidth, item.SourceHeight)
	dto.Target = geometryOf(item.TargetWidth, item.TargetHeight)
	if item.Status == queue.StatusCompleted {
		if item.OutputPath != "" {
			dto.OutputURL = fmt.Sprintf("/api/jobs/%d/output", item.ID)
		}
		if item.CaptionPath != "" {
			dto.CaptionURL = fmt.Sprintf("/api/jobs/%d/captions", item.ID)
		}
	}
	if item.Status == queue.StatusFailed {
		dto.Error = &JobError{
			Stage:     item.ErrorStage,
			Kind:      item.ErrorKind,
			Message:   item.ErrorMessage,
			Retryable: queue.Retryable(item.ErrorKind),
		}
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []Job {
	out := make([]Job, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		ActiveJobs: summary.Active,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
	}
	if wf.ActiveJobs == nil {
		wf.ActiveJobs = []int64{}
	}
	if summary.LastItem != nil {
		last := FromQueueItem(summary.LastItem)
		wf.LastJob = &last
	}
	return wf
}

// FromDiagnostics converts queue database diagnostics. A nil result means
// the diagnostics could not be collected.
func FromDiagnostics(diag queue.Diagnostics, err error) *QueueDiagnostics {
	if err != nil {
		return nil
	}
	return &QueueDiagnostics{
		SizeBytes:     diag.SizeBytes,
		SchemaVersion: diag.SchemaVersion,
		IntegrityOK:   diag.IntegrityOK,
		Jobs:          diag.Jobs,
	}
}

// FromDependencies converts binary checks into API payloads.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Path:        s.Path,
			Version:     s.Version,
			Detail:      s.Detail,
		})
	}
	return out
}

// FromLogEvents converts hub events into API payloads.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:  evt.Sequence,
			Timestamp: FormatTime(evt.Timestamp),
			Level:     evt.Level,
			Message:   evt.Message,
			Component: evt.Component,
			Stage:     evt.Stage,
			JobID:     evt.JobID,
			RequestID: evt.RequestID,
			Fields:    evt.Fields,
		})
	}
	return out
}

// MergeQueueStats produces a string-keyed representation of queue stats
// with every status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func geometryOf(w, h int) *Geometry {
	if w <= 0 || h <= 0 {
		return nil
	}
	return &Geometry{Width: w, Height: h, Label: geometry.Dimensions{Width: w, Height: h}.String()}
}
