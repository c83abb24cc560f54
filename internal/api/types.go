package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a queued transform in a transport-friendly format.
type Job struct {
	ID            int64       `json:"id"`
	Title         string      `json:"title"`
	OutputID      string      `json:"output_id"`
	SourcePath    string      `json:"source_path"`
	AspectRatio   string      `json:"aspect_ratio"`
	Resolution    string      `json:"resolution"`
	Format        string      `json:"format"`
	AutoCaption   bool        `json:"auto_caption"`
	Platform      string      `json:"platform,omitempty"`
	VideoType     string      `json:"video_type,omitempty"`
	Status        string      `json:"status"`
	Progress      JobProgress `json:"progress"`
	Source        *Geometry   `json:"source,omitempty"`
	Target        *Geometry   `json:"target,omitempty"`
	OutputURL     string      `json:"output_url,omitempty"`
	CaptionURL    string      `json:"caption_url,omitempty"`
	CaptionStatus string      `json:"caption_status,omitempty"`
	CaptionNote   string      `json:"caption_note,omitempty"`
	Error         *JobError   `json:"error,omitempty"`
	CreatedAt     string      `json:"created_at,omitempty"`
	UpdatedAt     string      `json:"updated_at,omitempty"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// JobError explains why a job produced nothing.
type JobError struct {
	Stage     string `json:"stage"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Geometry is a width/height pair with its "WxH" rendering.
type Geometry struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Label  string `json:"label"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// ResolutionRequest asks for the dimensions of an uploaded file.
type ResolutionRequest struct {
	FilePath string `json:"file_path"`
}

// ResolutionResponse reports source dimensions and the labels worth offering.
type ResolutionResponse struct {
	Resolution           string   `json:"resolution"`
	Width                int      `json:"width"`
	Height               int      `json:"height"`
	AvailableResolutions []string `json:"available_resolutions"`
}

// UploadResponse describes a stored upload.
type UploadResponse struct {
	Path                 string   `json:"path"`
	Filename             string   `json:"filename"`
	Size                 int64    `json:"size"`
	SHA256               string   `json:"sha256"`
	Resolution           string   `json:"resolution"`
	Width                int      `json:"width"`
	Height               int      `json:"height"`
	AvailableResolutions []string `json:"available_resolutions"`
}

// FeaturesResponse advertises optional capabilities.
type FeaturesResponse struct {
	AutoCaptionAvailable bool     `json:"auto_caption_available"`
	Transcriber          string   `json:"transcriber"`
	Reason               string   `json:"reason,omitempty"`
	AspectRatios         []string `json:"aspect_ratios"`
	Formats              []string `json:"formats"`
	Platforms            []string `json:"platforms"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	ActiveJobs []int64        `json:"active_jobs"`
	QueueStats map[string]int `json:"queue_stats"`
	LastError  string         `json:"last_error,omitempty"`
	LastJob    *Job           `json:"last_job,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queue_db_path"`
	QueueDB      *QueueDiagnostics  `json:"queue_db,omitempty"`
	LockFilePath string             `json:"lock_file_path"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// QueueDiagnostics describes the job database file.
type QueueDiagnostics struct {
	SizeBytes     int64 `json:"size_bytes"`
	SchemaVersion int   `json:"schema_version"`
	IntegrityOK   bool  `json:"integrity_ok"`
	Jobs          int   `json:"jobs"`
}

// LogStreamResponse carries a page of log events and the cursor to resume from.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// LogEvent is a structured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	JobID     int64             `json:"job_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ClearResponse reports how many jobs a clear removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}
