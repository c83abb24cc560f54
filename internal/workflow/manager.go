package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reframe/internal/config"
	"reframe/internal/job"
	"reframe/internal/logging"
	"reframe/internal/notifications"
	"reframe/internal/queue"
)

const (
	heartbeatInterval = 15 * time.Second
	heartbeatTimeout  = 2 * time.Minute
	progressStep      = 1.0
)

// Runner executes one transform. *job.Coordinator satisfies it.
type Runner interface {
	Run(ctx context.Context, req job.Request, observe job.Observer) (job.Result, error)
}

// Manager coordinates queue processing across a pool of workers.
type Manager struct {
	cfg           *config.Config
	store         *queue.Store
	runner        Runner
	logger        *slog.Logger
	workers       int
	pollInterval  time.Duration
	retryInterval time.Duration
	heartbeat     heartbeats
	notifier      notifications.Service
	wake          chan struct{}

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	busy     map[int64]*queue.Item
	lastErr  error
	lastItem *queue.Item
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, runner Runner, logger *slog.Logger) *Manager {
	logger = logging.NewComponentLogger(logger, "workflow")
	workers := cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		runner:        runner,
		logger:        logger,
		workers:       workers,
		pollInterval:  cfg.PollInterval(),
		retryInterval: cfg.ErrorRetryInterval(),
		heartbeat:     heartbeats{store: store, logger: logger, interval: heartbeatInterval, timeout: heartbeatTimeout},
		notifier:      notifications.NewService(cfg),
		wake:          make(chan struct{}, 1),
		busy:          make(map[int64]*queue.Item),
	}
}

// Start launches the workers. In-flight items left over from a previous run
// are returned to pending first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.runner == nil {
		m.mu.Unlock()
		return errors.New("workflow runner not configured")
	}
	if reset, err := m.store.ResetStuckProcessing(ctx); err != nil {
		m.logger.Warn("reset of stuck items failed; they may stay in flight",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_reset_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"))
	} else if reset > 0 {
		m.logger.Info("returned interrupted jobs to the queue", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i+1)
	}
	m.logger.Info("workflow started", logging.Int("workers", m.workers))
	return nil
}

// Stop cancels the workers, waits for them, and fails whatever was in
// flight with DaemonStopReason.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if n, err := m.store.FailInFlight(ctx, queue.DaemonStopReason); err != nil {
		m.logger.Warn("failed to mark interrupted jobs", logging.Error(err))
	} else if n > 0 {
		m.logger.Info("interrupted jobs marked failed", logging.Int64("count", n))
	}
	m.logger.Info("workflow stopped")
}

// Wake nudges an idle worker to poll immediately.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Running reports whether workers are active.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
