package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"reframe/internal/api"
	"reframe/internal/config"
	"reframe/internal/deps"
	"reframe/internal/fileutil"
	"reframe/internal/geometry"
	"reframe/internal/logging"
	"reframe/internal/preflight"
	"reframe/internal/queue"
	"reframe/internal/services"
	"reframe/internal/transcode"
	"reframe/internal/workflow"
)

// DimensionProber reads source dimensions for uploads and resolution queries.
type DimensionProber interface {
	Dimensions(ctx context.Context, path string) (geometry.Dimensions, error)
}

// CaptionFeature reports transcriber availability.
type CaptionFeature interface {
	Available() (bool, string)
	Name() string
}

// Options carries the optional collaborators of a Daemon.
type Options struct {
	Prober   DimensionProber
	Captions CaptionFeature
	LogHub   *logging.StreamHub
	// DependencyCheck overrides preflight.CheckSystemDeps.
	DependencyCheck func(context.Context, *config.Config) []deps.Status
}

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	prober   DimensionProber
	captions CaptionFeature
	hub      *logging.StreamHub
	depCheck func(context.Context, *config.Config) []deps.Status

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	QueueDB      *api.QueueDiagnostics
	LockFilePath string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, opts Options) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	depCheck := opts.DependencyCheck
	if depCheck == nil {
		depCheck = preflight.CheckSystemDeps
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		prober:   opts.Prober,
		captions: opts.Captions,
		hub:      opts.LogHub,
		depCheck: depCheck,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager, and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reframe daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("reframe daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.Addr()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reframe daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if closer, ok := d.captions.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil {
			d.logger.Warn("failed to close transcriber", logging.Error(err))
		}
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound HTTP address once started.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.store.Path(),
		QueueDB:      api.FromDiagnostics(d.store.Diagnose(ctx)),
		LockFilePath: d.lockPath,
		Dependencies: d.depCheck(ctx, d.cfg),
	}
}

// Features reports optional capabilities for the UI.
func (d *Daemon) Features() api.FeaturesResponse {
	resp := api.FeaturesResponse{
		Transcriber:  config.TranscriberNone,
		AspectRatios: geometry.PresetNames(),
		Platforms:    geometry.Platforms(),
	}
	for _, f := range transcode.Formats() {
		resp.Formats = append(resp.Formats, string(f))
	}
	if d.captions == nil {
		resp.Reason = "captions not configured"
		return resp
	}
	resp.Transcriber = d.captions.Name()
	resp.AutoCaptionAvailable, resp.Reason = d.captions.Available()
	return resp
}

// Submit validates a transform request and queues it.
func (d *Daemon) Submit(ctx context.Context, req api.TransformRequest) (*queue.Item, error) {
	spec, err := req.Validate()
	if err != nil {
		return nil, err
	}
	source, err := checkSourceFile(spec.SourcePath)
	if err != nil {
		return nil, err
	}
	spec.SourcePath = source
	spec.OutputDir = d.cfg.Paths.OutputDir
	item, err := d.store.Enqueue(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	d.workflow.Wake()
	logging.WithContext(ctx, d.logger).Info("job queued",
		logging.String(logging.FieldEventType, "job_queued"),
		logging.Int64(logging.FieldJobID, item.ID),
		logging.String("output_id", item.OutputID),
		logging.String("source", source),
		logging.String("aspect_ratio", spec.AspectRatio),
		logging.String("resolution", spec.Resolution),
	)
	return item, nil
}

// SaveUpload stores an uploaded video under the upload directory as
// "<uuid>_<name>" and probes its dimensions. Unreadable uploads are removed.
func (d *Daemon) SaveUpload(ctx context.Context, name string, body io.Reader) (api.UploadResponse, error) {
	safe := fileutil.SafeName(name)
	if err := checkExtension(safe); err != nil {
		return api.UploadResponse{}, err
	}
	dst := filepath.Join(d.cfg.Paths.UploadDir, uuid.NewString()+"_"+safe)
	written, err := fileutil.WriteStream(dst, body, d.cfg.MaxUploadBytes())
	if err != nil {
		if errors.Is(err, fileutil.ErrTooLarge) {
			return api.UploadResponse{}, services.Wrap(services.ErrInvalidSpec, "upload", "store", err.Error(), nil)
		}
		return api.UploadResponse{}, fmt.Errorf("store upload: %w", err)
	}
	dims, err := d.probe(ctx, written.Path)
	if err != nil {
		_ = os.Remove(written.Path)
		return api.UploadResponse{}, err
	}
	logging.WithContext(ctx, d.logger).Info("upload stored",
		logging.String(logging.FieldEventType, "upload_stored"),
		logging.String("path", written.Path),
		logging.Int64("bytes", written.Size),
		logging.String("sha256", written.SHA256),
		logging.String("resolution", dims.String()),
	)
	return api.UploadResponse{
		Path:                 written.Path,
		Filename:             safe,
		Size:                 written.Size,
		SHA256:               written.SHA256,
		Resolution:           dims.String(),
		Width:                dims.Width,
		Height:               dims.Height,
		AvailableResolutions: geometry.AvailableResolutions(dims),
	}, nil
}

// Resolution reports the dimensions of a file on disk.
func (d *Daemon) Resolution(ctx context.Context, path string) (api.ResolutionResponse, error) {
	source, err := checkSourceFile(path)
	if err != nil {
		return api.ResolutionResponse{}, err
	}
	dims, err := d.probe(ctx, source)
	if err != nil {
		return api.ResolutionResponse{}, err
	}
	return api.ResolutionResponse{
		Resolution:           dims.String(),
		Width:                dims.Width,
		Height:               dims.Height,
		AvailableResolutions: geometry.AvailableResolutions(dims),
	}, nil
}

// Job fetches a queue item, reporting ErrNotFound when missing.
func (d *Daemon) Job(ctx context.Context, id int64) (*queue.Item, error) {
	item, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "", "job", fmt.Sprintf("job %d not found", id), nil)
	}
	return item, nil
}

// RetryJob requeues a failed job under a fresh output id.
func (d *Daemon) RetryJob(ctx context.Context, id int64) (*queue.Item, error) {
	item, err := d.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != queue.StatusFailed {
		return nil, services.Wrap(services.ErrInvalidSpec, "", "retry", fmt.Sprintf("job %d is %s, only failed jobs can be retried", id, item.Status), nil)
	}
	if _, err := d.store.RetryFailed(ctx, id); err != nil {
		return nil, err
	}
	d.workflow.Wake()
	return d.Job(ctx, id)
}

// RemoveJob deletes a job that is not in flight.
func (d *Daemon) RemoveJob(ctx context.Context, id int64) error {
	item, err := d.Job(ctx, id)
	if err != nil {
		return err
	}
	if item.IsProcessing() {
		return services.Wrap(services.ErrInvalidSpec, "", "remove", fmt.Sprintf("job %d is %s", id, item.Status), nil)
	}
	_, err = d.store.Remove(ctx, id)
	return err
}

// ClearJobs removes finished jobs. Scope is "completed", "failed", or "all"
// (the default); in-flight jobs are never removed.
func (d *Daemon) ClearJobs(ctx context.Context, scope string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case "completed":
		return d.store.ClearCompleted(ctx)
	case "failed":
		return d.store.ClearFailed(ctx)
	case "", "all":
		return d.store.Clear(ctx)
	}
	return 0, services.Wrap(services.ErrInvalidSpec, "", "clear", fmt.Sprintf("unknown scope %q", scope), nil)
}

func (d *Daemon) probe(ctx context.Context, path string) (geometry.Dimensions, error) {
	if d.prober == nil {
		return geometry.Dimensions{}, services.Wrap(services.ErrConfiguration, "probe", "prober", "no prober configured", nil)
	}
	return d.prober.Dimensions(ctx, path)
}

var allowedExtensions = map[string]struct{}{
	".mp4": {},
	".mkv": {},
	".avi": {},
}

func checkExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return services.Wrap(services.ErrInvalidSpec, "upload", "extension",
			fmt.Sprintf("unsupported file extension %q (allowed: .mp4, .mkv, .avi)", ext), nil)
	}
	return nil
}

func checkSourceFile(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", services.Wrap(services.ErrInvalidSpec, "resolve", "source", "source path is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "resolve", "source", fmt.Sprintf("source %q not found", absPath), err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrInvalidSpec, "resolve", "source", fmt.Sprintf("source %q is a directory", absPath), nil)
	}
	if err := checkExtension(info.Name()); err != nil {
		return "", err
	}
	return absPath, nil
}
