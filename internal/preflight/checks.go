package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"reframe/internal/config"
	"reframe/internal/deps"
	"reframe/internal/services"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// FreeBytes reports the bytes available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckFreeSpace reports whether path has at least minGiB free.
func CheckFreeSpace(name, path string, minGiB int) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	detail := fmt.Sprintf("%s (%.1f GiB free)", path, float64(free)/gib)
	if minGiB > 0 && free < uint64(minGiB)*gib {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", need %d GiB", minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// SpaceChecker returns a function failing when a directory has less than
// minGiB free. The coordinator runs it before every transcode.
func SpaceChecker(minGiB int) func(dir string) error {
	return func(dir string) error {
		if minGiB <= 0 {
			return nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrConfiguration, "transcode", "output dir", dir, err)
		}
		result := CheckFreeSpace("Output directory", dir, minGiB)
		if !result.Passed {
			return services.Wrap(services.ErrTransient, "transcode", "free space", result.Detail, nil)
		}
		return nil
	}
}

const gib = 1 << 30

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the daemon and the CLI status command use this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Transcode.FFmpegBinary,
			Description: "Required for transcoding and audio extraction",
			Versioned:   true,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Transcode.FFprobeBinary,
			Description: "Required for reading source resolution",
			Versioned:   true,
		},
	}
	if cfg.CaptionsActive() {
		switch cfg.Captions.Transcriber {
		case config.TranscriberWhisperX:
			requirements = append(requirements, deps.Requirement{
				Name:        "uvx",
				Command:     "uvx",
				Description: "Runs WhisperX for automatic captions",
				Optional:    true,
			})
		case config.TranscriberWhisper:
			requirements = append(requirements, deps.Requirement{
				Name:        "whisper",
				Command:     "whisper",
				Description: "Runs openai-whisper for automatic captions",
				Optional:    true,
			})
		}
	}
	return deps.CheckBinaries(ctx, requirements)
}
