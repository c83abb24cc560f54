package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"reframe/internal/captions"
	"reframe/internal/config"
	"reframe/internal/daemon"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/media/ffprobe"
	"reframe/internal/preflight"
	"reframe/internal/queue"
	"reframe/internal/transcode"
	"reframe/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Pipeline bundles a job coordinator with the resources it owns.
type Pipeline struct {
	Coordinator *job.Coordinator
	Prober      *ffprobe.Prober
	Captions    *captions.Handle
}

// NewPipeline wires ffprobe, ffmpeg, the caption pipeline, and the free
// space check into a coordinator. The CLI and the daemon share it.
func NewPipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	prober := ffprobe.NewProber(cfg.Transcode.FFprobeBinary)
	handle := captions.NewHandleFromConfig(cfg)
	captioner := &captions.Pipeline{
		Extractor:         captions.NewFFmpegExtractor(cfg.Transcode.FFmpegBinary, prober.HasAudio),
		Handle:            handle,
		WorkDir:           cfg.Paths.WorkDir,
		FallbackWindow:    cfg.FallbackSegment(),
		ExtractTimeout:    cfg.ExtractionTimeout(),
		TranscribeTimeout: cfg.TranscriptionTimeout(),
		Logger:            logging.NewComponentLogger(logger, "captions"),
	}
	return &Pipeline{
		Coordinator: &job.Coordinator{
			Prober:     prober,
			Transcoder: transcode.NewFFmpeg(transcode.OptionsFromConfig(cfg)),
			Captions:   captioner,
			CheckSpace: preflight.SpaceChecker(cfg.Transcode.MinFreeGiB),
			Logger:     logger,
		},
		Prober:   prober,
		Captions: handle,
	}
}

// Close releases the transcriber.
func (p *Pipeline) Close() error {
	if p == nil || p.Captions == nil {
		return nil
	}
	return p.Captions.Close()
}

// Run starts the reframe daemon and blocks until the context ends or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("reframe-%s.log", runID))
	logHub := logging.NewStreamHub(4096)
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		Hub:         logHub,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update reframe.log link: %v\n", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "reframe.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	pipeline := NewPipeline(cfg, logger)
	manager := workflow.NewManager(cfg, store, pipeline.Coordinator, logger)
	d, err := daemon.New(cfg, store, logger, manager, daemon.Options{
		Prober:   pipeline.Prober,
		Captions: pipeline.Captions,
		LogHub:   logHub,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bind address and that no other daemon holds the lock"),
			logging.String(logging.FieldImpact, "jobs will not be processed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("reframe daemon shutting down")
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String(logging.FieldEventType, "preflight_passed"),
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs depending on this check will fail"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "reframe.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon, or 0.
func ReadPID(cfg *config.Config) int {
	data, err := os.ReadFile(filepath.Join(cfg.Paths.DataDir, "reframe.pid"))
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}
