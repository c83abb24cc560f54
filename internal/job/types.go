package job

import (
	"fmt"
	"path/filepath"

	"reframe/internal/captions"
	"reframe/internal/geometry"
	"reframe/internal/transcode"
)

// Stage names a coordinator step.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageProbe     Stage = "probe"
	StagePlan      Stage = "plan"
	StageTranscode Stage = "transcode"
	StageCaptions  Stage = "captions"
	StageDone      Stage = "done"
)

// Request is one transform job.
type Request struct {
	SourcePath string
	// SourceDimensions is optional; zero means probe the source.
	SourceDimensions  geometry.Dimensions
	AspectRatio       geometry.AspectRatio
	Scale             geometry.ScalePolicy
	OutputFormat      string
	CaptionsRequested bool
	OutputDir         string
	// OutputID names the artifacts; generated when empty.
	OutputID string
}

// Failure describes why a job produced nothing.
type Failure struct {
	Stage   Stage  `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", f.Stage, f.Message)
}

// Result reports what a job produced. Error is nil when the video exists;
// caption degradation shows only in CaptionStatus and CaptionNote.
type Result struct {
	OutputID         string              `json:"output_id"`
	OutputPath       string              `json:"output_path,omitempty"`
	CaptionTrackPath string              `json:"caption_track_path,omitempty"`
	CaptionStatus    captions.Status     `json:"caption_status"`
	CaptionNote      string              `json:"caption_note,omitempty"`
	Source           geometry.Dimensions `json:"source"`
	Target           geometry.Dimensions `json:"target"`
	Format           transcode.Format    `json:"format,omitempty"`
	Error            *Failure            `json:"error,omitempty"`
}

// Succeeded reports whether the video was produced.
func (r Result) Succeeded() bool {
	return r.Error == nil && r.OutputPath != ""
}

// Event is a stage transition or progress sample.
type Event struct {
	Stage   Stage
	Percent float64
	Message string
}

// Observer receives events while a job runs. It must not block.
type Observer func(Event)

// OutputPath returns the video path for an output id.
func OutputPath(dir, outputID string, format transcode.Format) string {
	return filepath.Join(dir, "output_"+outputID+format.Extension())
}

// CaptionPath returns the SRT path for an output id.
func CaptionPath(dir, outputID string) string {
	return filepath.Join(dir, "output_"+outputID+".srt")
}
