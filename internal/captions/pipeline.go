package captions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"reframe/internal/logging"
	"reframe/internal/services"
)

// Request names the source to caption and where the track goes.
type Request struct {
	SourcePath string
	OutputPath string
}

// Outcome reports how a caption run ended. Err is set only for Failed.
type Outcome struct {
	State     State
	Status    Status
	Note      string
	Segments  []Segment
	TrackPath string
	Err       error
}

// Pipeline extracts audio, transcribes it, and writes an SRT track.
type Pipeline struct {
	Extractor         AudioExtractor
	Handle            *Handle
	WorkDir           string
	FallbackWindow    time.Duration
	ExtractTimeout    time.Duration
	TranscribeTimeout time.Duration
	Logger            *slog.Logger
}

// NotRequested is the outcome for jobs that did not ask for captions.
func NotRequested() Outcome {
	return Outcome{State: StateNotRequested, Status: StatusNotRequested}
}

// Run executes the pipeline. It never returns an error; failures are
// reported in the Outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) Outcome {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.Logger, "captions"))

	transcriber, reason, ok := p.Handle.Acquire()
	if !ok {
		logger.Info("captions skipped",
			logging.Args(append(logging.DecisionAttrs("captions", string(StatusUnavailable), reason),
				logging.String("source", req.SourcePath))...)...)
		return Outcome{State: StateDone, Status: StatusUnavailable, Note: NoteUnavailable}
	}
	if p.Extractor == nil {
		return p.fail(logger, StatusExtractionFailed, services.Wrap(services.ErrExtractionFailed, "captions", "extract", "no audio extractor configured", nil))
	}

	if p.WorkDir != "" {
		if err := os.MkdirAll(p.WorkDir, 0o755); err != nil {
			return p.fail(logger, StatusExtractionFailed, services.Wrap(services.ErrExtractionFailed, "captions", "work dir", p.WorkDir, err))
		}
	}
	scratch, err := os.MkdirTemp(p.WorkDir, "captions-*")
	if err != nil {
		return p.fail(logger, StatusExtractionFailed, services.Wrap(services.ErrExtractionFailed, "captions", "scratch dir", "", err))
	}
	defer os.RemoveAll(scratch)

	audioPath, hasAudio, err := p.extract(ctx, req.SourcePath, scratch)
	if err != nil {
		return p.fail(logger, StatusExtractionFailed, err)
	}
	if !hasAudio {
		logger.Info("captions skipped",
			logging.Args(logging.DecisionAttrs("captions", string(StatusNoAudio), "source has no audio stream")...)...)
		return Outcome{State: StateDone, Status: StatusNoAudio, Note: NoteNoAudio}
	}
	logger.Debug("audio extracted", logging.String("audio", audioPath))

	transcript, err := p.transcribe(ctx, transcriber, audioPath, scratch)
	if err != nil {
		return p.fail(logger, StatusTranscriptionFailed, err)
	}

	segments := BuildSegments(transcript, p.FallbackWindow)
	if len(segments) == 0 {
		logger.Info("captions skipped",
			logging.Args(logging.DecisionAttrs("captions", string(StatusNoSpeech), "transcript is empty")...)...)
		return Outcome{State: StateDone, Status: StatusNoSpeech, Note: NoteNoSpeech}
	}

	if err := WriteSRTFile(req.OutputPath, segments); err != nil {
		out := p.fail(logger, StatusWriteFailed, services.Wrap(services.ErrTranscriptionFailed, "captions", "write srt", req.OutputPath, err))
		out.Segments = segments
		return out
	}

	logger.Info("captions generated",
		logging.String("track", req.OutputPath),
		logging.Int("segments", len(segments)),
		logging.String("transcriber", transcriber.Name()))
	return Outcome{
		State:     StateDone,
		Status:    StatusGenerated,
		Note:      NoteGenerated,
		Segments:  segments,
		TrackPath: req.OutputPath,
	}
}

func (p *Pipeline) extract(ctx context.Context, source, scratch string) (string, bool, error) {
	stepCtx, cancel := withOptionalTimeout(ctx, p.ExtractTimeout)
	defer cancel()
	path, ok, err := p.Extractor.Extract(stepCtx, source, scratch)
	if err != nil {
		return "", false, services.Wrap(services.ErrExtractionFailed, "captions", "extract", timeoutNote(stepCtx), err)
	}
	return path, ok, nil
}

func (p *Pipeline) transcribe(ctx context.Context, t Transcriber, audioPath, scratch string) (Transcript, error) {
	stepCtx, cancel := withOptionalTimeout(ctx, p.TranscribeTimeout)
	defer cancel()
	transcript, err := t.Transcribe(stepCtx, audioPath, scratch)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscriptionFailed, "captions", "transcribe "+t.Name(), timeoutNote(stepCtx), err)
	}
	return transcript, nil
}

func (p *Pipeline) fail(logger *slog.Logger, status Status, err error) Outcome {
	logging.WarnWithContext(logger, "captions failed", "captions_"+string(status),
		logging.Error(err),
		logging.String(logging.FieldImpact, "video delivered without a subtitle track"),
		logging.String(logging.FieldErrorHint, "check ffmpeg and transcriber installation"))
	return Outcome{State: StateFailed, Status: status, Note: failureNote(status, err), Err: err}
}

func failureNote(status Status, err error) string {
	switch status {
	case StatusExtractionFailed:
		return fmt.Sprintf("Caption audio extraction failed: %v", err)
	case StatusTranscriptionFailed:
		return fmt.Sprintf("Transcription failed: %v", err)
	}
	return fmt.Sprintf("Caption track could not be written: %v", err)
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func timeoutNote(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timed out"
	}
	return ""
}
