package queue

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPlanning    Status = "planning"
	StatusTranscoding Status = "transcoding"
	StatusCaptioning  Status = "captioning"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusPlanning,
	StatusTranscoding,
	StatusCaptioning,
	StatusCompleted,
	StatusFailed,
}

var processingStatuses = map[Status]struct{}{
	StatusPlanning:    {},
	StatusTranscoding: {},
	StatusCaptioning:  {},
}

// Diagnostics describes the queue database file.
type Diagnostics struct {
	Path          string
	SizeBytes     int64
	SchemaVersion int
	IntegrityOK   bool
	Jobs          int
}

// Spec is the submitted transform request as persisted.
type Spec struct {
	SourcePath  string
	AspectRatio string
	Resolution  string
	Format      string
	AutoCaption bool
	Platform    string
	VideoType   string
	OutputDir   string
	// OutputID is generated when empty.
	OutputID string
	// SourceWidth and SourceHeight are optional; zero means probe.
	SourceWidth  int
	SourceHeight int
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	SourcePath      string     `json:"source_path"`
	AspectRatio     string     `json:"aspect_ratio"`
	Resolution      string     `json:"resolution"`
	Format          string     `json:"format"`
	AutoCaption     bool       `json:"auto_caption"`
	Platform        string     `json:"platform,omitempty"`
	VideoType       string     `json:"video_type,omitempty"`
	OutputID        string     `json:"output_id"`
	OutputDir       string     `json:"output_dir"`
	Status          Status     `json:"status"`
	SourceWidth     int        `json:"source_width,omitempty"`
	SourceHeight    int        `json:"source_height,omitempty"`
	TargetWidth     int        `json:"target_width,omitempty"`
	TargetHeight    int        `json:"target_height,omitempty"`
	OutputPath      string     `json:"output_path,omitempty"`
	CaptionPath     string     `json:"caption_path,omitempty"`
	CaptionStatus   string     `json:"caption_status,omitempty"`
	CaptionNote     string     `json:"caption_note,omitempty"`
	ErrorStage      string     `json:"error_stage,omitempty"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ProgressStage   string     `json:"progress_stage,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty"`
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the item has finished, successfully or not.
func (i Item) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetFailed marks the item as failed with a classified error.
func (i *Item) SetFailed(stage, kind, message string) {
	i.Status = StatusFailed
	i.ErrorStage = stage
	i.ErrorKind = kind
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.ProgressStage = "Failed"
	i.LastHeartbeat = nil
}

// Spec returns the persisted request.
func (i Item) Spec() Spec {
	return Spec{
		SourcePath:   i.SourcePath,
		AspectRatio:  i.AspectRatio,
		Resolution:   i.Resolution,
		Format:       i.Format,
		AutoCaption:  i.AutoCaption,
		Platform:     i.Platform,
		VideoType:    i.VideoType,
		OutputDir:    i.OutputDir,
		OutputID:     i.OutputID,
		SourceWidth:  i.SourceWidth,
		SourceHeight: i.SourceHeight,
	}
}

var titleCaser = cases.Title(language.English)

// InferTitle turns an upload file name into a display title. Upload names
// carry a "<uuid>_" prefix which is dropped.
func InferTitle(path string) string {
	base := strings.TrimSpace(filepath.Base(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if prefix, rest, ok := strings.Cut(base, "_"); ok && len(prefix) == 36 && strings.Count(prefix, "-") == 4 {
		base = rest
	}
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return "Untitled Video"
	}
	return titleCaser.String(strings.Join(words, " "))
}
