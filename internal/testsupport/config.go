package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"reframe/internal/config"
)

// ConfigOption adjusts a test config after its directories are assigned.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns the default config with every path under a fresh temp
// directory, the API on an ephemeral port and captions switched off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	for dir, name := range map[*string]string{
		&cfg.Paths.DataDir:   "data",
		&cfg.Paths.UploadDir: "uploads",
		&cfg.Paths.OutputDir: "outputs",
		&cfg.Paths.WorkDir:   "work",
		&cfg.Paths.LogDir:    "logs",
	} {
		*dir = filepath.Join(root, name)
	}
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Captions.Transcriber = config.TranscriberNone

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// BaseDir returns the temp directory every path of cfg lives under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

func WithAPIToken(token string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.Server.APIToken = token }
}

func WithWorkers(n int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.Workflow.Workers = n }
}

func WithNtfyTopic(topic string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.Notifications.NtfyTopic = topic }
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg and
// ffprobe by default) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		bin := filepath.Join(BaseDir(cfg), "bin")
		if err := os.MkdirAll(bin, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", bin, err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
