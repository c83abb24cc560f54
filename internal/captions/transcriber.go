package captions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"reframe/internal/config"
	"reframe/internal/services/whisper"
	"reframe/internal/services/whisperx"
)

// backend is the shape shared by the whisperx and whisper services.
type backend interface {
	Name() string
	Check() error
	TranscribeFile(ctx context.Context, source, outputDir, language string) (whisperx.TranscribeResult, error)
}

// cliTranscriber adapts a CLI backend to the Transcriber interface.
type cliTranscriber struct {
	backend  backend
	language string
}

// NewCLITranscriber wraps a whisperx or whisper service.
func NewCLITranscriber(b backend, lang string) Transcriber {
	return &cliTranscriber{backend: b, language: NormalizeLanguage(lang)}
}

func (c *cliTranscriber) Name() string {
	return c.backend.Name()
}

func (c *cliTranscriber) Transcribe(ctx context.Context, audioPath, workDir string) (Transcript, error) {
	result, err := c.backend.TranscribeFile(ctx, audioPath, workDir, c.language)
	if err != nil {
		return Transcript{}, err
	}
	transcript := Transcript{Text: result.Text, Utterances: make([]Utterance, 0, len(result.Segments))}
	for _, seg := range result.Segments {
		transcript.Utterances = append(transcript.Utterances, Utterance{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  seg.Text,
		})
	}
	return transcript, nil
}

func seconds(value float64) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value * float64(time.Second))
}

// NormalizeLanguage reduces a language tag or ISO 639-2 code to its short
// ISO 639 form ("eng" becomes "en"). Unknown values yield "" so the backend
// auto-detects.
func NormalizeLanguage(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if tag, err := language.Parse(value); err == nil {
		if base, conf := tag.Base(); conf != language.No && base.String() != "und" {
			return base.String()
		}
	}
	if base, err := language.ParseBase(strings.ToLower(value)); err == nil && base.String() != "und" {
		return base.String()
	}
	return ""
}

// NewHandleFromConfig builds the handle for the configured backend. Captions
// disabled or transcriber "none" give an unavailable handle; otherwise the
// backend is checked on first use.
func NewHandleFromConfig(cfg *config.Config) *Handle {
	if cfg == nil {
		return UnavailableHandle("no configuration")
	}
	if !cfg.Captions.Enabled {
		return UnavailableHandle("captions disabled in configuration")
	}
	lang := cfg.Captions.Language
	switch cfg.Captions.Transcriber {
	case config.TranscriberNone:
		return UnavailableHandle("transcriber set to none")
	case config.TranscriberWhisper:
		return NewHandle(loaderFor(whisper.NewService(cfg.Captions.WhisperModel), lang))
	case config.TranscriberWhisperX, "":
		return NewHandle(loaderFor(whisperx.NewService(whisperx.Config{
			Model:       cfg.Captions.WhisperXModel,
			CUDAEnabled: cfg.Captions.WhisperXCUDAEnabled,
			VADMethod:   cfg.Captions.WhisperXVADMethod,
			HFToken:     cfg.Captions.WhisperXHuggingFace,
		}), lang))
	}
	return UnavailableHandle(fmt.Sprintf("unknown transcriber %q", cfg.Captions.Transcriber))
}

func loaderFor(b backend, lang string) Loader {
	return func() (Transcriber, error) {
		if b == nil {
			return nil, errors.New("no backend")
		}
		if err := b.Check(); err != nil {
			return nil, fmt.Errorf("%s unavailable: %w", b.Name(), err)
		}
		return NewCLITranscriber(b, lang), nil
	}
}
