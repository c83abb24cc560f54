package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reframe/internal/config"
	"reframe/internal/services"
	"reframe/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if free, err := FreeBytes(dir); err != nil || free == 0 {
		t.Fatalf("FreeBytes = %d, %v", free, err)
	}
	if result := CheckFreeSpace("out", dir, 0); !result.Passed {
		t.Fatalf("zero minimum should pass: %s", result.Detail)
	}
	result := CheckFreeSpace("out", dir, 1<<30)
	if result.Passed || !strings.Contains(result.Detail, "need") {
		t.Fatalf("absurd minimum should fail, got %+v", result)
	}
}

func TestSpaceChecker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "outputs")
	if err := SpaceChecker(0)(dir); err != nil {
		t.Fatalf("disabled checker returned %v", err)
	}
	err := SpaceChecker(1 << 30)(dir)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if _, statErr := os.Stat(dir); statErr != nil {
		t.Fatalf("checker should create the output dir: %v", statErr)
	}
}

func TestRunAllWithStubbedTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Transcode.MinFreeGiB = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllReportsMissingTools(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transcode.FFmpegBinary = "reframe-missing-ffmpeg"
	cfg.Transcode.MinFreeGiB = 0
	cfg.Captions.Enabled = true
	cfg.Captions.Transcriber = config.TranscriberWhisper
	t.Setenv("PATH", t.TempDir())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	failed := Failed(RunAll(context.Background(), cfg))
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Name)
	}
	if strings.Join(names, ",") != "FFmpeg,FFprobe" {
		t.Fatalf("expected only ffmpeg/ffprobe failures, got %v", names)
	}
}
