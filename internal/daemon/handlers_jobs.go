package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"

	"reframe/internal/api"
	"reframe/internal/queue"
	"reframe/internal/services"
	"reframe/internal/transcode"
)

const maxJSONBody = 1 << 20

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.TransformRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	item, err := s.daemon.Submit(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: api.FromQueueItem(item)})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.List(r.Context(), r.URL.Query()["status"])
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromQueueItem(item)})
}

func (s *apiServer) handleRemoveJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.RemoveJob(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	item, err := s.daemon.RetryJob(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: api.FromQueueItem(item)})
}

func (s *apiServer) handleClearJobs(w http.ResponseWriter, r *http.Request) {
	removed, err := s.daemon.ClearJobs(r.Context(), r.URL.Query().Get("scope"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
}

func (s *apiServer) handleOutput(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if item.Status != queue.StatusCompleted || item.OutputPath == "" {
		s.writeError(w, http.StatusNotFound, "output not available")
		return
	}
	contentType := "application/octet-stream"
	if format, err := transcode.ParseFormat(item.Format); err == nil {
		contentType = format.ContentType()
	}
	s.serveArtifact(w, r, item.OutputPath, contentType)
}

func (s *apiServer) handleCaptions(w http.ResponseWriter, r *http.Request) {
	item, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if item.CaptionPath == "" {
		s.writeError(w, http.StatusNotFound, "captions not available")
		return
	}
	s.serveArtifact(w, r, item.CaptionPath, "application/x-subrip")
}

func (s *apiServer) serveArtifact(w http.ResponseWriter, r *http.Request, path, contentType string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "file missing on disk")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	http.ServeFile(w, r, path)
}

func (s *apiServer) lookupJob(w http.ResponseWriter, r *http.Request) (*queue.Item, bool) {
	id, ok := s.jobID(w, r)
	if !ok {
		return nil, false
	}
	item, err := s.daemon.Job(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return nil, false
	}
	return item, true
}

func (s *apiServer) jobID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return services.Wrap(services.ErrInvalidSpec, "", "decode request", "malformed JSON body", err)
	}
	return nil
}
