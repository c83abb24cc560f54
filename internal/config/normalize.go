package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeTranscode()
	c.normalizeCaptions()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	for _, entry := range []struct {
		key   string
		value *string
		leaf  string
	}{
		{"paths.upload_dir", &c.Paths.UploadDir, "uploads"},
		{"paths.output_dir", &c.Paths.OutputDir, "outputs"},
		{"paths.work_dir", &c.Paths.WorkDir, "work"},
		{"paths.log_dir", &c.Paths.LogDir, "logs"},
	} {
		if strings.TrimSpace(*entry.value) == "" {
			*entry.value = filepath.Join(c.Paths.DataDir, entry.leaf)
		}
		if *entry.value, err = expandPath(*entry.value); err != nil {
			return fmt.Errorf("%s: %w", entry.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("REFRAME_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = defaultMaxUploadMB
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.FFprobeBinary = strings.TrimSpace(c.Transcode.FFprobeBinary)
	if c.Transcode.FFprobeBinary == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transcode.FitMode = strings.ToLower(strings.TrimSpace(c.Transcode.FitMode))
	if c.Transcode.FitMode == "" {
		c.Transcode.FitMode = FitStretch
	}
	c.Transcode.X264Preset = strings.ToLower(strings.TrimSpace(c.Transcode.X264Preset))
	if c.Transcode.X264Preset == "" {
		c.Transcode.X264Preset = defaultX264Preset
	}
}

func (c *Config) normalizeCaptions() {
	c.Captions.Transcriber = strings.ToLower(strings.TrimSpace(c.Captions.Transcriber))
	if c.Captions.Transcriber == "" {
		c.Captions.Transcriber = TranscriberWhisperX
	}
	c.Captions.Language = strings.ToLower(strings.TrimSpace(c.Captions.Language))
	c.Captions.WhisperXModel = strings.TrimSpace(c.Captions.WhisperXModel)
	if c.Captions.WhisperXModel == "" {
		c.Captions.WhisperXModel = defaultWhisperXModel
	}
	c.Captions.WhisperModel = strings.TrimSpace(c.Captions.WhisperModel)
	if c.Captions.WhisperModel == "" {
		c.Captions.WhisperModel = defaultWhisperModel
	}
	c.Captions.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(c.Captions.WhisperXVADMethod))
	if c.Captions.WhisperXVADMethod == "" {
		c.Captions.WhisperXVADMethod = defaultWhisperXVADMethod
	}
	c.Captions.WhisperXHuggingFace = strings.TrimSpace(c.Captions.WhisperXHuggingFace)
	if c.Captions.WhisperXHuggingFace == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Captions.WhisperXHuggingFace = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Captions.WhisperXHuggingFace = strings.TrimSpace(value)
		}
	}
	if c.Captions.FallbackSegmentSeconds <= 0 {
		c.Captions.FallbackSegmentSeconds = defaultFallbackSegmentSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("REFRAME_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotificationTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
