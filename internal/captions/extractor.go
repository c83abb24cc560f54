package captions

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// AudioExtractor writes the source's audio to a file under workDir. ok is
// false when the source has no audio stream.
type AudioExtractor interface {
	Extract(ctx context.Context, source, workDir string) (path string, ok bool, err error)
}

// AudioProbe reports whether a file carries audio.
type AudioProbe func(ctx context.Context, path string) (bool, error)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// FFmpegExtractor extracts mono 16 kHz PCM WAV audio with ffmpeg.
type FFmpegExtractor struct {
	Binary   string
	HasAudio AudioProbe
	Run      CommandRunner
}

// NewFFmpegExtractor returns an extractor using binary and the given probe.
func NewFFmpegExtractor(binary string, probe AudioProbe) *FFmpegExtractor {
	return &FFmpegExtractor{Binary: binary, HasAudio: probe}
}

// Extract implements AudioExtractor.
func (e *FFmpegExtractor) Extract(ctx context.Context, source, workDir string) (string, bool, error) {
	if e.HasAudio != nil {
		hasAudio, err := e.HasAudio(ctx, source)
		if err != nil {
			return "", false, fmt.Errorf("probe audio: %w", err)
		}
		if !hasAudio {
			return "", false, nil
		}
	}
	dest := filepath.Join(workDir, "audio.wav")
	if err := e.run(ctx, ExtractArgs(source, dest)...); err != nil {
		return "", false, err
	}
	return dest, true, nil
}

func (e *FFmpegExtractor) run(ctx context.Context, args ...string) error {
	binary := strings.TrimSpace(e.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if e.Run != nil {
		return e.Run(ctx, binary, args...)
	}
	output, err := exec.CommandContext(ctx, binary, args...).CombinedOutput() //nolint:gosec
	if err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ExtractArgs builds the ffmpeg arguments for first-track audio extraction.
func ExtractArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}
