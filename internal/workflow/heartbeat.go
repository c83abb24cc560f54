package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reframe/internal/logging"
	"reframe/internal/queue"
)

// heartbeats keeps claimed jobs marked alive and hands back jobs whose
// worker stopped beating, e.g. after a crash of another daemon process.
type heartbeats struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// reclaim returns stale in-flight jobs to pending.
func (h heartbeats) reclaim(ctx context.Context) (int64, error) {
	if h.timeout <= 0 {
		return 0, nil
	}
	return h.store.ReclaimStaleProcessing(ctx, time.Now().Add(-h.timeout))
}

// keep beats for jobID until the returned stop function is called. stop
// waits for the beating goroutine to exit.
func (h heartbeats) keep(ctx context.Context, jobID int64) (stop func()) {
	if h.interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := h.store.UpdateHeartbeat(ctx, jobID)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
