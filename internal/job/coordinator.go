package job

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reframe/internal/captions"
	"reframe/internal/geometry"
	"reframe/internal/logging"
	"reframe/internal/media/ffprobe"
	"reframe/internal/services"
	"reframe/internal/transcode"
)

// Prober reads source media properties.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// Transcoder re-encodes a source to planned dimensions.
type Transcoder interface {
	Transcode(ctx context.Context, req transcode.Request) error
}

// Captioner produces a subtitle track. It reports failures in the outcome.
type Captioner interface {
	Run(ctx context.Context, req captions.Request) captions.Outcome
}

// SpaceChecker fails when dir cannot hold another output.
type SpaceChecker func(dir string) error

// Coordinator runs transform jobs.
type Coordinator struct {
	Prober     Prober
	Transcoder Transcoder
	Captions   Captioner
	CheckSpace SpaceChecker
	Logger     *slog.Logger
	NewID      func() string
}

// Run executes req. The returned error is non-nil exactly when no video was
// produced, and mirrors Result.Error.
func (c *Coordinator) Run(ctx context.Context, req Request, observe Observer) (Result, error) {
	if observe == nil {
		observe = func(Event) {}
	}
	logger := logging.NewComponentLogger(c.Logger, "job")
	result := Result{OutputID: strings.TrimSpace(req.OutputID), CaptionStatus: captions.StatusNotRequested}
	if result.OutputID == "" {
		result.OutputID = c.newID()
	}

	enter := func(stage Stage) context.Context {
		observe(Event{Stage: stage})
		return services.WithStage(ctx, string(stage))
	}
	fail := func(stage Stage, err error) (Result, error) {
		result.Error = &Failure{Stage: stage, Kind: services.Kind(err), Message: err.Error()}
		logging.ErrorWithContext(logging.WithContext(services.WithStage(ctx, string(stage)), logger),
			"transform failed", "job_failed",
			logging.Error(err),
			logging.String("source", req.SourcePath),
			logging.String(logging.FieldErrorHint, hintFor(err)))
		return result, err
	}

	enter(StageResolve)
	ratioW, ratioH, format, err := validate(req)
	if err != nil {
		return fail(StageResolve, err)
	}
	result.Format = format

	source := req.SourceDimensions
	var duration time.Duration
	if source == (geometry.Dimensions{}) {
		stageCtx := enter(StageProbe)
		if c.Prober == nil {
			return fail(StageProbe, services.Wrap(services.ErrUnreadableMedia, "probe", "ffprobe", "no prober configured", nil))
		}
		probed, err := c.Prober.Probe(stageCtx, req.SourcePath)
		if err != nil {
			return fail(StageProbe, err)
		}
		if source, err = ffprobe.DimensionsOf(probed, req.SourcePath); err != nil {
			return fail(StageProbe, err)
		}
		duration = time.Duration(probed.DurationSeconds() * float64(time.Second))
	}
	result.Source = source

	stageCtx := enter(StagePlan)
	target, err := geometry.Plan(source, ratioW, ratioH, req.Scale)
	if err != nil {
		return fail(StagePlan, err)
	}
	result.Target = target
	logging.WithContext(stageCtx, logger).Info("transform planned",
		logging.Args(append(logging.DecisionAttrs("plan", target.String(), req.Scale.String()),
			logging.String("source_dimensions", source.String()),
			logging.String("aspect_ratio", req.AspectRatio.String()),
			logging.String("format", format.String()))...)...)

	stageCtx = enter(StageTranscode)
	if c.Transcoder == nil {
		return fail(StageTranscode, services.Wrap(services.ErrTranscodeFailed, "transcode", "ffmpeg", "no transcoder configured", nil))
	}
	if c.CheckSpace != nil {
		if err := c.CheckSpace(req.OutputDir); err != nil {
			return fail(StageTranscode, err)
		}
	}
	outputPath := OutputPath(req.OutputDir, result.OutputID, format)
	err = c.Transcoder.Transcode(stageCtx, transcode.Request{
		Source:   req.SourcePath,
		Output:   outputPath,
		Target:   target,
		Format:   format,
		Duration: duration,
		Progress: func(p transcode.Progress) {
			if p.Percent >= 0 {
				observe(Event{Stage: StageTranscode, Percent: p.Percent})
			}
		},
	})
	if err != nil {
		return fail(StageTranscode, err)
	}
	result.OutputPath = outputPath
	logging.WithContext(stageCtx, logger).Info("video transcoded", logging.String("output", outputPath))

	if req.CaptionsRequested {
		stageCtx = enter(StageCaptions)
		outcome := captions.Outcome{State: captions.StateDone, Status: captions.StatusUnavailable, Note: captions.NoteUnavailable}
		if c.Captions != nil {
			outcome = c.Captions.Run(stageCtx, captions.Request{
				SourcePath: req.SourcePath,
				OutputPath: CaptionPath(req.OutputDir, result.OutputID),
			})
		}
		result.CaptionStatus = outcome.Status
		result.CaptionNote = outcome.Note
		result.CaptionTrackPath = outcome.TrackPath
	}

	observe(Event{Stage: StageDone, Percent: 100})
	return result, nil
}

func validate(req Request) (int, int, transcode.Format, error) {
	ratioW, ratioH, err := geometry.Resolve(req.AspectRatio)
	if err != nil {
		return 0, 0, "", err
	}
	format, err := transcode.ParseFormat(req.OutputFormat)
	if err != nil {
		return 0, 0, "", err
	}
	switch req.Scale.Kind {
	case geometry.ScaleAbsolute:
	case geometry.ScalePercentage:
		if req.Scale.Percent <= 0 || req.Scale.Percent > 100 {
			return 0, 0, "", services.Wrap(services.ErrInvalidSpec, "resolve", "scale",
				"percentage must be in (0,100]", nil)
		}
	default:
		return 0, 0, "", services.Wrap(services.ErrInvalidSpec, "resolve", "scale", "unknown scale policy", nil)
	}
	if strings.TrimSpace(req.SourcePath) == "" {
		return 0, 0, "", services.Wrap(services.ErrInvalidSpec, "resolve", "source", "source path is required", nil)
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return 0, 0, "", services.Wrap(services.ErrInvalidSpec, "resolve", "output", "output directory is required", nil)
	}
	if d := req.SourceDimensions; d != (geometry.Dimensions{}) && !d.Valid() {
		return 0, 0, "", services.Wrap(services.ErrInvalidSpec, "resolve", "source dimensions",
			"source dimensions "+d.String()+" must be positive", nil)
	}
	return ratioW, ratioH, format, nil
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		if id := strings.TrimSpace(c.NewID()); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func hintFor(err error) string {
	switch services.Kind(err) {
	case "invalid_spec":
		return "check aspect ratio, resolution and format"
	case "degenerate_geometry":
		return "choose a larger resolution or a less extreme aspect ratio"
	case "unreadable_media":
		return "verify the source is a readable video file"
	case "transcode_failed":
		return "inspect ffmpeg output in the job log"
	}
	return ""
}
