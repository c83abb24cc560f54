package daemon

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"reframe/internal/api"
	"reframe/internal/logging"
)

const (
	defaultLogLimit  = 200
	followPollPeriod = 250 * time.Millisecond
	followMaxWait    = 25 * time.Second
)

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.hub
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []api.LogEvent{}})
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := truthy(query.Get("follow"))
	tail := truthy(query.Get("tail"))
	var jobID int64
	if value := strings.TrimSpace(query.Get("job")); value != "" {
		jobID, _ = strconv.ParseInt(value, 10, 64)
	}
	component := strings.TrimSpace(query.Get("component"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events = hub.Tail(limit)
		next = hub.Cursor()
	} else {
		events, next = hub.Since(since, limit)
		if follow && len(events) == 0 {
			events, next = s.waitForLogs(r, hub, since, limit)
		}
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if jobID != 0 && evt.JobID != jobID {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: api.FromLogEvents(filtered), Next: next})
}

// waitForLogs polls the hub until new events arrive, the client goes away, or
// followMaxWait elapses.
func (s *apiServer) waitForLogs(r *http.Request, hub *logging.StreamHub, since uint64, limit int) ([]logging.LogEvent, uint64) {
	ticker := time.NewTicker(followPollPeriod)
	defer ticker.Stop()
	deadline := time.NewTimer(followMaxWait)
	defer deadline.Stop()
	for {
		select {
		case <-r.Context().Done():
			return nil, since
		case <-deadline.C:
			return hub.Since(since, limit)
		case <-ticker.C:
			if events, next := hub.Since(since, limit); len(events) > 0 {
				return events, next
			}
		}
	}
}

func truthy(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}
