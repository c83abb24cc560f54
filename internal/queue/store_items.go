package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotClaimable is returned when a claimed item moved out of pending first.
var ErrNotClaimable = errors.New("item is not pending")

// Enqueue inserts a pending transform job.
func (s *Store) Enqueue(ctx context.Context, spec Spec) (*Item, error) {
	if strings.TrimSpace(spec.SourcePath) == "" {
		return nil, errors.New("enqueue: source path is required")
	}
	if strings.TrimSpace(spec.OutputDir) == "" {
		return nil, errors.New("enqueue: output dir is required")
	}
	outputID := strings.TrimSpace(spec.OutputID)
	if outputID == "" {
		outputID = uuid.NewString()
	}
	timestamp := nowString()

	res, err := s.exec(
		ctx,
		`INSERT INTO queue_items (
            title, source_path, aspect_ratio, resolution, output_format, auto_caption,
            platform, video_type, output_id, output_dir, status, source_width, source_height,
            progress_stage, progress_percent, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		InferTitle(spec.SourcePath),
		spec.SourcePath,
		spec.AspectRatio,
		spec.Resolution,
		spec.Format,
		boolToInt(spec.AutoCaption),
		nullableString(spec.Platform),
		nullableString(spec.VideoType),
		outputID,
		spec.OutputDir,
		StatusPending,
		spec.SourceWidth,
		spec.SourceHeight,
		"Queued",
		0.0,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. A missing item yields nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// GetByOutputID fetches the item that owns an output id.
func (s *Store) GetByOutputID(ctx context.Context, outputID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE output_id = ?`, outputID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by output id: %w", err)
	}
	return item, nil
}

// Update persists the mutable fields of an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if _, err := s.exec(
		ctx,
		`UPDATE queue_items
         SET status = ?, source_width = ?, source_height = ?, target_width = ?, target_height = ?,
             output_path = ?, caption_path = ?, caption_status = ?, caption_note = ?,
             error_stage = ?, error_kind = ?, error_message = ?,
             progress_stage = ?, progress_percent = ?, progress_message = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		item.Status,
		item.SourceWidth,
		item.SourceHeight,
		item.TargetWidth,
		item.TargetHeight,
		nullableString(item.OutputPath),
		nullableString(item.CaptionPath),
		nullableString(item.CaptionStatus),
		nullableString(item.CaptionNote),
		nullableString(item.ErrorStage),
		nullableString(item.ErrorKind),
		nullableString(item.ErrorMessage),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		nullableTime(item.LastHeartbeat),
		nowString(),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// UpdateProgress records a stage transition or progress sample.
func (s *Store) UpdateProgress(ctx context.Context, id int64, status Status, stage, message string, percent float64) error {
	now := nowString()
	if _, err := s.exec(
		ctx,
		`UPDATE queue_items
         SET status = ?, progress_stage = ?, progress_message = ?, progress_percent = ?,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		status, nullableString(stage), nullableString(message), percent, now, now, id,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`, statusArgs(statuses)...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return scanItems(rows)
}

// ClaimNext moves the oldest pending item to planning and returns it. It
// returns nil, nil when nothing is pending. Concurrent callers never claim
// the same item.
func (s *Store) ClaimNext(ctx context.Context) (*Item, error) {
	for attempt := 0; attempt < busyAttempts; attempt++ {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM queue_items WHERE status = ? ORDER BY created_at, id LIMIT 1`,
			StatusPending,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select pending: %w", err)
		}
		if err := s.claim(ctx, id); err != nil {
			if errors.Is(err, ErrNotClaimable) {
				continue
			}
			return nil, err
		}
		return s.GetByID(ctx, id)
	}
	return nil, nil
}

func (s *Store) claim(ctx context.Context, id int64) error {
	now := nowString()
	affected, err := s.execCount(
		ctx,
		`UPDATE queue_items
         SET status = ?, progress_stage = ?, progress_percent = 0, progress_message = NULL,
             error_stage = NULL, error_kind = NULL, error_message = NULL,
             last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPlanning, "Planning", now, now, id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("claim item: %w", err)
	}
	if affected == 0 {
		return ErrNotClaimable
	}
	return nil
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	affected, err := s.execCount(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed items from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	n, err := s.execCount(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return n, nil
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	n, err := s.execCount(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return n, nil
}

// Clear removes all items that are not in flight.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	processing := processingStatusList()
	n, err := s.execCount(ctx,
		`DELETE FROM queue_items WHERE status NOT IN (`+makePlaceholders(len(processing))+`)`,
		statusArgs(processing)...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return n, nil
}
