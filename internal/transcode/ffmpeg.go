package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reframe/internal/config"
	"reframe/internal/geometry"
	"reframe/internal/services"
)

// Runner executes ffmpeg, streaming its stdout into stdout.
type Runner func(ctx context.Context, name string, args []string, stdout io.Writer) error

// Options configures the ffmpeg invoker.
type Options struct {
	Binary  string
	FitMode string
	Preset  string
	CRF     int
	Timeout time.Duration
}

// OptionsFromConfig maps the [transcode] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Binary:  cfg.Transcode.FFmpegBinary,
		FitMode: cfg.Transcode.FitMode,
		Preset:  cfg.Transcode.X264Preset,
		CRF:     cfg.Transcode.CRF,
		Timeout: cfg.TranscodeTimeout(),
	}
}

// Request describes one re-encode.
type Request struct {
	Source string
	Output string
	Target geometry.Dimensions
	Format Format
	// Duration of the source, used to turn ffmpeg's output time into a percentage.
	Duration time.Duration
	Progress func(Progress)
}

// Progress is one sample of ffmpeg's -progress stream.
type Progress struct {
	OutTime time.Duration
	Percent float64
	Speed   float64
	Done    bool
}

// FFmpeg transcodes with an ffmpeg binary.
type FFmpeg struct {
	opts   Options
	runner Runner
}

// NewFFmpeg builds an invoker, filling blank options with defaults.
func NewFFmpeg(opts Options) *FFmpeg {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.FitMode) == "" {
		opts.FitMode = config.FitStretch
	}
	if strings.TrimSpace(opts.Preset) == "" {
		opts.Preset = "medium"
	}
	if opts.CRF <= 0 {
		opts.CRF = 23
	}
	return &FFmpeg{opts: opts, runner: execRunner}
}

// WithRunner overrides command execution (for testing).
func (f *FFmpeg) WithRunner(runner Runner) *FFmpeg {
	if runner != nil {
		f.runner = runner
	}
	return f
}

// Options returns the effective options.
func (f *FFmpeg) Options() Options {
	return f.opts
}

// Transcode encodes req.Source into req.Output. The output is written to a
// sibling temp file and renamed into place only after ffmpeg succeeds.
func (f *FFmpeg) Transcode(ctx context.Context, req Request) error {
	if strings.TrimSpace(req.Source) == "" || strings.TrimSpace(req.Output) == "" {
		return services.Wrap(services.ErrInvalidSpec, "transcode", "request", "source and output paths are required", nil)
	}
	if !req.Target.Valid() {
		return services.Wrap(services.ErrDegenerateGeometry, "transcode", "request",
			fmt.Sprintf("target %s is not encodable", req.Target), nil)
	}
	if _, err := ParseFormat(string(req.Format)); err != nil {
		return err
	}
	if sameFile(req.Source, req.Output) {
		return services.Wrap(services.ErrInvalidSpec, "transcode", "request", "output would overwrite the source", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return services.Wrap(services.ErrTranscodeFailed, "transcode", "prepare output dir", err.Error(), err)
	}

	partial := req.Output + ".partial"
	_ = os.Remove(partial)

	runCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	args := f.BuildArgs(req, partial)
	var stdout io.Writer = io.Discard
	if req.Progress != nil {
		stdout = &progressWriter{duration: req.Duration, emit: req.Progress}
	}
	if err := f.runner(runCtx, f.opts.Binary, args, stdout); err != nil {
		_ = os.Remove(partial)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTranscodeFailed, "transcode", "ffmpeg",
				fmt.Sprintf("timed out after %s", f.opts.Timeout), err)
		}
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTranscodeFailed, "transcode", "ffmpeg", "cancelled", ctx.Err())
		}
		return services.Wrap(services.ErrTranscodeFailed, "transcode", "ffmpeg", "encoder exited with error", err)
	}
	info, err := os.Stat(partial)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrTranscodeFailed, "transcode", "verify output", "ffmpeg produced no output", err)
	}
	if err := os.Rename(partial, req.Output); err != nil {
		_ = os.Remove(partial)
		return services.Wrap(services.ErrTranscodeFailed, "transcode", "finalize output", err.Error(), err)
	}
	return nil
}

// BuildArgs returns the ffmpeg argument list writing to dest.
func (f *FFmpeg) BuildArgs(req Request, dest string) []string {
	c := req.Format.codecs()
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-progress", "pipe:1",
		"-i", req.Source,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-vf", Filter(f.opts.FitMode, req.Target),
		"-c:v", c.video,
	}
	switch c.video {
	case "libx264", "libx265":
		args = append(args,
			"-preset", f.opts.Preset,
			"-crf", strconv.Itoa(f.opts.CRF),
			"-pix_fmt", pixelFormat(req.Target),
		)
	default:
		args = append(args, "-q:v", "4", "-pix_fmt", "yuv420p")
	}
	args = append(args, "-c:a", c.audio)
	if c.audio == "libmp3lame" {
		args = append(args, "-q:a", "2")
	} else {
		args = append(args, "-b:a", "192k")
	}
	if req.Format == FormatMP4 {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-f", req.Format.Muxer(), dest)
}

// Filter builds the -vf chain that lands exactly on target for a fit mode.
func Filter(fitMode string, target geometry.Dimensions) string {
	w, h := target.Width, target.Height
	switch fitMode {
	case config.FitCrop:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1", w, h, w, h)
	case config.FitPad:
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1", w, h, w, h)
	default:
		return fmt.Sprintf("scale=%d:%d,setsar=1", w, h)
	}
}

// 4:2:0 chroma needs even dimensions; odd planned sizes fall back to 4:4:4.
func pixelFormat(target geometry.Dimensions) string {
	if target.Width%2 != 0 || target.Height%2 != 0 {
		return "yuv444p"
	}
	return "yuv420p"
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

const stderrTail = 4096

func execRunner(ctx context.Context, name string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > stderrTail {
			detail = detail[len(detail)-stderrTail:]
		}
		if detail == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, detail)
	}
	return nil
}

// progressWriter parses ffmpeg's key=value progress blocks. A block ends
// with a progress=continue|end line.
type progressWriter struct {
	duration time.Duration
	emit     func(Progress)
	pending  []byte
	current  Progress
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(w.pending[:idx]))
		w.pending = w.pending[idx+1:]
		w.handle(line)
	}
	return len(p), nil
}

func (w *progressWriter) handle(line string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports both keys in microseconds.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			w.current.OutTime = time.Duration(us) * time.Microsecond
		}
	case "speed":
		if speed, err := strconv.ParseFloat(strings.TrimSuffix(value, "x"), 64); err == nil {
			w.current.Speed = speed
		}
	case "progress":
		w.current.Done = value == "end"
		w.current.Percent = -1
		if w.duration > 0 {
			pct := float64(w.current.OutTime) / float64(w.duration) * 100
			if pct > 100 || w.current.Done {
				pct = 100
			}
			w.current.Percent = pct
		}
		if w.emit != nil {
			w.emit(w.current)
		}
	}
}
