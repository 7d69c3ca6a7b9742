// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
	"github.com/kuaigrab/kuaigrab/internal/schema"
	"github.com/kuaigrab/kuaigrab/internal/task"
)

// Service is the operation surface the HTTP layer consumes.
type Service interface {
	GetMetadata(ctx context.Context, rawURL string) (*schema.VideoMetadata, error)
	EnqueueDownload(rawURL string) (string, error)
	GetTaskStatus(taskID string) task.Task
}

type urlRequest struct {
	URL string `json:"url"`
}

type infoResponse struct {
	Status  string                `json:"status"`
	Message string                `json:"message"`
	Data    *schema.VideoMetadata `json:"data"`
}

type downloadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "kuaigrab service is running"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeURLRequest(w, r)
	if !ok {
		return
	}

	meta, err := s.service.GetMetadata(r.Context(), req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, infoResponse{
		Status:  "success",
		Message: "metadata extracted",
		Data:    meta,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeURLRequest(w, r)
	if !ok {
		return
	}

	taskID, err := s.service.EnqueueDownload(req.URL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, downloadResponse{
		Status:  "queued",
		Message: "download task queued",
		TaskID:  taskID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]
	record := s.service.GetTaskStatus(taskID)

	status := http.StatusOK
	if record.Status == task.StatusNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, record)
}

func (s *Server) decodeURLRequest(w http.ResponseWriter, r *http.Request) (urlRequest, bool) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:  "error",
			Kind:    "bad_request",
			Message: "request body must be JSON with a url field",
		})
		return req, false
	}
	if strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Status:  "error",
			Kind:    "bad_request",
			Message: "url is required",
		})
		return req, false
	}
	return req, true
}

// writeError maps the error taxonomy onto transport statuses: resolution and
// extraction problems are the caller's input (400), auth is 401, upstream
// fetch failures are 503, everything else is 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperrors.KindResolution, apperrors.KindExtraction:
		status = http.StatusBadRequest
	case apperrors.KindAuth:
		status = http.StatusUnauthorized
	case apperrors.KindFetch:
		status = http.StatusServiceUnavailable
	}

	s.logger.Warnf("request failed (%s): %v", kind, err)
	writeJSON(w, status, errorResponse{
		Status:  "error",
		Kind:    kind.String(),
		Message: apperrors.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
