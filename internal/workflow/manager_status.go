package workflow

import (
	"context"
	"sort"

	"reframe/internal/logging"
	"reframe/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool                 `json:"running"`
	Workers    int                  `json:"workers"`
	Active     []int64              `json:"active_jobs"`
	LastError  string               `json:"last_error,omitempty"`
	LastItem   *queue.Item          `json:"last_item,omitempty"`
	QueueStats map[queue.Status]int `json:"queue_stats"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, Workers: m.workers}
	for id := range m.busy {
		summary.Active = append(summary.Active, id)
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastItem != nil {
		copy := *m.lastItem
		summary.LastItem = &copy
	}
	m.mu.RUnlock()
	sort.Slice(summary.Active, func(i, j int) bool { return summary.Active[i] < summary.Active[j] })

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	if item != nil {
		copy := *item
		m.lastItem = &copy
	} else {
		m.lastItem = nil
	}
	m.mu.Unlock()
}

func (m *Manager) markBusy(item *queue.Item) {
	m.mu.Lock()
	m.busy[item.ID] = item
	m.mu.Unlock()
}

func (m *Manager) markIdle(id int64) {
	m.mu.Lock()
	delete(m.busy, id)
	m.mu.Unlock()
}
