package queue

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "id, title, source_path, aspect_ratio, resolution, output_format, auto_caption, platform, video_type, output_id, output_dir, status, source_width, source_height, target_width, target_height, output_path, caption_path, caption_status, caption_note, error_stage, error_kind, error_message, progress_stage, progress_percent, progress_message, created_at, updated_at, last_heartbeat"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item             Item
		title            sql.NullString
		autoCaption      int64
		platform         sql.NullString
		videoType        sql.NullString
		statusStr        string
		outputPath       sql.NullString
		captionPath      sql.NullString
		captionStatus    sql.NullString
		captionNote      sql.NullString
		errorStage       sql.NullString
		errorKind        sql.NullString
		errorMessage     sql.NullString
		progressStage    sql.NullString
		progressMessage  sql.NullString
		createdRaw       string
		updatedRaw       string
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&item.ID,
		&title,
		&item.SourcePath,
		&item.AspectRatio,
		&item.Resolution,
		&item.Format,
		&autoCaption,
		&platform,
		&videoType,
		&item.OutputID,
		&item.OutputDir,
		&statusStr,
		&item.SourceWidth,
		&item.SourceHeight,
		&item.TargetWidth,
		&item.TargetHeight,
		&outputPath,
		&captionPath,
		&captionStatus,
		&captionNote,
		&errorStage,
		&errorKind,
		&errorMessage,
		&progressStage,
		&item.ProgressPercent,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	item.Title = title.String
	item.AutoCaption = autoCaption != 0
	item.Platform = platform.String
	item.VideoType = videoType.String
	item.Status = Status(statusStr)
	item.OutputPath = outputPath.String
	item.CaptionPath = captionPath.String
	item.CaptionStatus = captionStatus.String
	item.CaptionNote = captionNote.String
	item.ErrorStage = errorStage.String
	item.ErrorKind = errorKind.String
	item.ErrorMessage = errorMessage.String
	item.ProgressStage = progressStage.String
	item.ProgressMessage = progressMessage.String

	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			item.LastHeartbeat = &heartbeat
		}
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}

func processingStatusList() []Status {
	return []Status{StatusPlanning, StatusTranscoding, StatusCaptioning}
}
