package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Complete marks an item completed and records what it produced.
func (s *Store) Complete(ctx context.Context, item *Item) error {
	item.Status = StatusCompleted
	item.SetProgress("Completed", "Transform complete", 100)
	item.ErrorStage, item.ErrorKind, item.ErrorMessage = "", "", ""
	item.LastHeartbeat = nil
	return s.Update(ctx, item)
}

// Fail marks an item failed with a classified error.
func (s *Store) Fail(ctx context.Context, item *Item, stage, kind, message string) error {
	item.SetFailed(stage, kind, message)
	return s.Update(ctx, item)
}

// ResetStuckProcessing returns in-flight items to pending. Called at daemon
// start, when no worker can own them.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	processing := processingStatusList()
	args := append([]any{StatusPending, nowString()}, statusArgs(processing)...)
	n, err := s.execCount(
		ctx,
		`UPDATE queue_items
         SET status = ?, progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(processing))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return n, nil
}

// FailInFlight fails every in-flight item with reason. Used on shutdown.
func (s *Store) FailInFlight(ctx context.Context, reason string) (int64, error) {
	processing := processingStatusList()
	args := append([]any{StatusFailed, reason, reason, nowString()}, statusArgs(processing)...)
	n, err := s.execCount(
		ctx,
		`UPDATE queue_items
         SET status = ?, error_kind = 'transient', error_message = ?, progress_message = ?,
             progress_stage = 'Failed', progress_percent = 0, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(processing))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight items: %w", err)
	}
	return n, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := nowString()
	if _, err := s.exec(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns in-flight items to pending when their
// heartbeat is older than cutoff.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	processing := processingStatusList()
	args := append([]any{StatusPending, nowString()}, statusArgs(processing)...)
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))
	n, err := s.execCount(
		ctx,
		`UPDATE queue_items
        SET status = ?, progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(processing))+`)
          AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return n, nil
}

// RetryFailed moves failed items back to pending. Each retried item gets a
// fresh output id so earlier artifacts are never overwritten. With no ids,
// every failed item is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	var items []*Item
	if len(ids) == 0 {
		failed, err := s.List(ctx, StatusFailed)
		if err != nil {
			return 0, err
		}
		items = failed
	} else {
		for _, id := range ids {
			item, err := s.GetByID(ctx, id)
			if err != nil {
				return 0, err
			}
			if item != nil && item.Status == StatusFailed {
				items = append(items, item)
			}
		}
	}

	var retried int64
	for _, item := range items {
		affected, err := s.execCount(
			ctx,
			`UPDATE queue_items
             SET status = ?, output_id = ?, progress_stage = 'Retry requested', progress_percent = 0,
                 progress_message = NULL, error_stage = NULL, error_kind = NULL, error_message = NULL,
                 output_path = NULL, caption_path = NULL, caption_status = NULL, caption_note = NULL,
                 updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusPending, uuid.NewString(), nowString(), item.ID, StatusFailed,
		)
		if err != nil {
			return retried, fmt.Errorf("retry item %d: %w", item.ID, err)
		}
		retried += affected
	}
	return retried, nil
}
