package daemon

import (
	"errors"
	"net/http"

	"reframe/internal/api"
)

// multipartMemory bounds the in-memory part of multipart parsing; larger
// parts spill to temporary files.
const multipartMemory = 32 << 20

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if limit := s.daemon.cfg.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "expected multipart form with a file field")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	resp, err := s.daemon.SaveUpload(r.Context(), header.Filename, file)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *apiServer) handleResolution(w http.ResponseWriter, r *http.Request) {
	var req api.ResolutionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp, err := s.daemon.Resolution(r.Context(), req.FilePath)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
