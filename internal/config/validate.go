package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return c.validateLogging()
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be at least 1")
	}
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval":        c.Workflow.PollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"server.max_upload_mb":          c.Server.MaxUploadMB,
	})
}

func (c *Config) validateTranscode() error {
	if !slices.Contains([]string{FitStretch, FitCrop, FitPad}, c.Transcode.FitMode) {
		return fmt.Errorf("transcode.fit_mode must be one of stretch, crop, pad (got %q)", c.Transcode.FitMode)
	}
	if c.Transcode.CRF < 0 || c.Transcode.CRF > 51 {
		return errors.New("transcode.crf must be between 0 and 51")
	}
	if c.Transcode.TimeoutSeconds <= 0 {
		return errors.New("transcode.timeout_seconds must be positive")
	}
	if c.Transcode.MinFreeGiB < 0 {
		return errors.New("transcode.min_free_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateCaptions() error {
	if !slices.Contains([]string{TranscriberWhisperX, TranscriberWhisper, TranscriberNone}, c.Captions.Transcriber) {
		return fmt.Errorf("captions.transcriber must be one of whisperx, whisper, none (got %q)", c.Captions.Transcriber)
	}
	if c.Captions.WhisperXVADMethod != "silero" && c.Captions.WhisperXVADMethod != "pyannote" {
		return fmt.Errorf("captions.whisperx_vad_method must be silero or pyannote (got %q)", c.Captions.WhisperXVADMethod)
	}
	return ensurePositiveMap(map[string]int{
		"captions.fallback_segment_seconds":      c.Captions.FallbackSegmentSeconds,
		"captions.extraction_timeout_seconds":    c.Captions.ExtractionTimeoutSeconds,
		"captions.transcription_timeout_seconds": c.Captions.TranscriptionTimeoutSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
