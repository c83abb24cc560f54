package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"reframe/internal/services/whisperx"
)

// Command is the openai-whisper executable.
const Command = "whisper"

// DefaultModel is used when no model is configured.
const DefaultModel = "base"

// Service invokes the whisper CLI.
type Service struct {
	model    string
	runner   whisperx.CommandRunner
	lookPath func(string) (string, error)
}

// NewService creates a whisper service for the given model.
func NewService(model string) *Service {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Service{model: model, lookPath: exec.LookPath}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner whisperx.CommandRunner) *Service {
	s.runner = runner
	return s
}

// WithLookPath overrides binary discovery (for testing).
func (s *Service) WithLookPath(lookPath func(string) (string, error)) *Service {
	if lookPath != nil {
		s.lookPath = lookPath
	}
	return s
}

// Name identifies the backend.
func (s *Service) Name() string { return "whisper" }

// Model returns the configured model name.
func (s *Service) Model() string { return s.model }

// Check verifies the whisper CLI is installed.
func (s *Service) Check() error {
	if _, err := s.lookPath(Command); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", Command, err)
	}
	return nil
}

// TranscribeFile transcribes source and parses the JSON written to outputDir.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir, language string) (whisperx.TranscribeResult, error) {
	var result whisperx.TranscribeResult
	if source == "" {
		return result, errors.New("transcribe: source path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	args := []string{source, "--model", s.model, "--output_format", "json", "--output_dir", outputDir, "--fp16", "False", "--verbose", "False"}
	if lang := strings.TrimSpace(language); lang != "" {
		args = append(args, "--language", lang)
	}
	if err := s.run(ctx, args...); err != nil {
		return result, fmt.Errorf("whisper: %w", err)
	}

	result.JSONPath = filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))+".json")
	segments, err := whisperx.LoadSegments(result.JSONPath)
	if err != nil {
		return result, fmt.Errorf("whisper: %w", err)
	}
	result.Segments = segments
	result.Text = whisperx.JoinText(segments)
	return result, nil
}

func (s *Service) run(ctx context.Context, args ...string) error {
	if s.runner != nil {
		return s.runner(ctx, Command, args...)
	}
	output, err := exec.CommandContext(ctx, Command, args...).CombinedOutput() //nolint:gosec
	if err != nil {
		return fmt.Errorf("%s: %w: %s", Command, err, strings.TrimSpace(string(output)))
	}
	return nil
}
