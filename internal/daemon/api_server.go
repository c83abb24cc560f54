package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reframe/internal/api"
	"reframe/internal/config"
	"reframe/internal/logging"
	"reframe/internal/services"
)

const requestIDHeader = "X-Request-ID"

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon
	jobs   *api.JobCatalog

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	return &apiServer{
		bind:   strings.TrimSpace(cfg.Server.Bind),
		token:  strings.TrimSpace(cfg.Server.APIToken),
		logger: logger,
		daemon: d,
		jobs:   api.NewJobCatalog(d.store),
	}
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.withRequestID(authMiddleware(s.token, h)))
	}
	handle("GET /api/status", s.handleStatus)
	handle("GET /api/features", s.handleFeatures)
	handle("POST /api/uploads", s.handleUpload)
	handle("POST /api/resolution", s.handleResolution)
	handle("POST /api/jobs", s.handleSubmit)
	handle("GET /api/jobs", s.handleJobs)
	handle("GET /api/jobs/{id}", s.handleJob)
	handle("DELETE /api/jobs/{id}", s.handleRemoveJob)
	handle("POST /api/jobs/clear", s.handleClearJobs)
	handle("POST /api/jobs/{id}/retry", s.handleRetryJob)
	handle("GET /api/jobs/{id}/output", s.handleOutput)
	handle("GET /api/jobs/{id}/captions", s.handleCaptions)
	handle("GET /api/logs", s.handleLogs)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.shutdown(server)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	s.shutdown(server)
}

// shutdown stops server if it is still the active one.
func (s *apiServer) shutdown(server *http.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if server == nil || s.server != server {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	s.server = nil
	s.listener = nil
}

// Addr returns the listening address, or "" when not serving.
func (s *apiServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		QueueDB:      status.QueueDB,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) handleFeatures(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Features())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeFailure maps classified errors onto HTTP status codes.
func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.Kind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidSpec), errors.Is(err, services.ErrDegenerateGeometry):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrUnreadableMedia):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrTransient):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.String("error_kind", kind),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Kind: kind})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
