package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reframe/internal/geometry"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/notifications"
	"reframe/internal/queue"
	"reframe/internal/services"
)

func (m *Manager) runWorker(ctx context.Context, worker int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", worker))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if worker == 1 {
			reclaimed, err := m.heartbeat.reclaim(ctx)
			switch {
			case err != nil && !errors.Is(err, context.Canceled):
				logger.Warn("reclaim stale processing failed; stuck items may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"))
			case reclaimed > 0:
				logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
			}
		}

		item, err := m.store.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
			continue
		}
		m.processItem(ctx, logger, item)
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next queue item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"))
	select {
	case <-ctx.Done():
	case <-time.After(m.retryInterval):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) processItem(ctx context.Context, workerLogger *slog.Logger, item *queue.Item) {
	jobCtx := services.WithJobID(ctx, item.ID)
	logger := logging.WithContext(jobCtx, workerLogger)
	m.markBusy(item)
	defer m.markIdle(item.ID)

	started := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("source", item.SourcePath),
		logging.String("aspect_ratio", item.AspectRatio),
		logging.String("resolution", item.Resolution),
		logging.String("format", item.Format))

	req, err := RequestFromItem(item)
	if err != nil {
		m.recordFailure(jobCtx, logger, item, job.StageResolve, err)
		return
	}

	stopHeartbeat := m.heartbeat.keep(jobCtx, item.ID)
	progress := &progressRecorder{store: m.store, logger: logger, item: item}
	result, runErr := m.runner.Run(jobCtx, req, progress.observe)
	stopHeartbeat()

	if runErr != nil && ctx.Err() != nil {
		logger.Debug("job interrupted by shutdown")
		return
	}

	applyResult(item, result)
	if runErr != nil {
		stage := job.StageResolve
		if result.Error != nil {
			stage = result.Error.Stage
		}
		m.recordFailure(jobCtx, logger, item, stage, runErr)
		return
	}
	if err := m.store.Complete(jobCtx, item); err != nil {
		logger.Error("failed to persist job result", logging.Error(err))
		m.setLastError(err)
		return
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("output", item.OutputPath),
		logging.String("target", result.Target.String()),
		logging.String("caption_status", string(result.CaptionStatus)),
		logging.Duration("duration", time.Since(started)))
	m.setLastItem(item)
	m.notify(jobCtx, logger, notifications.EventJobCompleted, notifications.Payload{
		"title":        item.Title,
		"target":       result.Target.String(),
		"output":       item.OutputPath,
		"caption_note": result.CaptionNote,
	})
}

func (m *Manager) recordFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, stage job.Stage, err error) {
	kind := queue.FailureKind(err)
	logging.ErrorWithContext(logger, "job failed", "job_failure",
		logging.Error(err),
		logging.String("error_kind", kind),
		logging.String(logging.FieldStage, string(stage)),
		logging.Bool("retryable", queue.Retryable(kind)))
	if perr := m.store.Fail(ctx, item, string(stage), kind, err.Error()); perr != nil {
		logger.Error("failed to persist job failure", logging.Error(perr))
	}
	m.setLastError(err)
	m.setLastItem(item)
	m.notify(ctx, logger, notifications.EventJobFailed, notifications.Payload{
		"title": item.Title,
		"stage": string(stage),
		"kind":  kind,
		"error": err.Error(),
	})
}

func (m *Manager) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.Error(err),
			logging.String("event", string(event)),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "the job result is unaffected"))
	}
}

// RequestFromItem rebuilds the coordinator request for a queued item.
func RequestFromItem(item *queue.Item) (job.Request, error) {
	return RequestFromSpec(item.Spec())
}

// RequestFromSpec converts a stored job spec into a coordinator request. An
// empty aspect ratio falls back to the video type default.
func RequestFromSpec(spec queue.Spec) (job.Request, error) {
	var ratio geometry.AspectRatio
	if spec.AspectRatio == "" {
		ratio = geometry.DefaultAspectRatio(spec.VideoType)
	} else {
		parsed, err := geometry.ParseAspectRatio(spec.AspectRatio)
		if err != nil {
			return job.Request{}, err
		}
		ratio = parsed
	}
	scale, err := geometry.ParseScale(spec.Resolution)
	if err != nil {
		return job.Request{}, err
	}
	return job.Request{
		SourcePath:        spec.SourcePath,
		SourceDimensions:  geometry.Dimensions{Width: spec.SourceWidth, Height: spec.SourceHeight},
		AspectRatio:       ratio,
		Scale:             scale,
		OutputFormat:      spec.Format,
		CaptionsRequested: spec.AutoCaption,
		OutputDir:         spec.OutputDir,
		OutputID:          spec.OutputID,
	}, nil
}

func applyResult(item *queue.Item, result job.Result) {
	if result.Source.Valid() {
		item.SourceWidth, item.SourceHeight = result.Source.Width, result.Source.Height
	}
	if result.Target.Valid() {
		item.TargetWidth, item.TargetHeight = result.Target.Width, result.Target.Height
	}
	item.OutputPath = result.OutputPath
	item.CaptionPath = result.CaptionTrackPath
	item.CaptionStatus = string(result.CaptionStatus)
	item.CaptionNote = result.CaptionNote
}

// progressRecorder persists stage changes and coarse transcode progress.
type progressRecorder struct {
	store  *queue.Store
	logger *slog.Logger
	item   *queue.Item

	mu      sync.Mutex
	stage   job.Stage
	percent float64
}

func (p *progressRecorder) observe(event job.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event.Stage == p.stage && event.Percent-p.percent < progressStep {
		return
	}
	status, label := statusForStage(event.Stage)
	if status == "" {
		return
	}
	p.stage = event.Stage
	p.percent = event.Percent
	message := event.Message
	if message == "" && event.Percent > 0 && event.Percent < 100 {
		message = fmt.Sprintf("%s %.0f%%", label, event.Percent)
	}
	p.item.Status = status
	p.item.SetProgress(label, message, event.Percent)
	// Progress writes are best effort; the job outcome is persisted separately.
	if err := p.store.UpdateProgress(context.Background(), p.item.ID, status, label, message, event.Percent); err != nil {
		p.logger.Warn("failed to persist job progress", logging.Error(err))
	}
}

func statusForStage(stage job.Stage) (queue.Status, string) {
	switch stage {
	case job.StageResolve, job.StageProbe, job.StagePlan:
		return queue.StatusPlanning, "Planning"
	case job.StageTranscode:
		return queue.StatusTranscoding, "Transcoding"
	case job.StageCaptions:
		return queue.StatusCaptioning, "Captioning"
	}
	return "", ""
}
