package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tenderwise/internal/indexer"
	"github.com/hyperjump/tenderwise/internal/models"
	"github.com/hyperjump/tenderwise/pkg/utils"
)

// InterfaceSourceAPI is recorded on queries that arrive over HTTP.
const InterfaceSourceAPI = "API"

type queryRequest struct {
	TenderID string `json:"tender_id"`
	Query    string `json:"query"`
	Strategy string `json:"strategy,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	strategy, err := models.ParseStrategy(body.Strategy)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request",
		zap.String("tender_id", body.TenderID),
		zap.String("query", utils.Truncate(body.Query, 80)),
		zap.String("strategy", body.Strategy))
	resp := s.queries.Handle(r.Context(), models.QueryRequest{
		TenderID:        body.TenderID,
		Query:           body.Query,
		InterfaceSource: InterfaceSourceAPI,
		Strategy:        strategy,
	})
	s.respondJSON(w, statusCode(resp.Status), resp)
}

func statusCode(st models.Status) int {
	switch st {
	case models.StatusRefused:
		return http.StatusBadRequest
	case models.StatusError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	tender := strings.TrimSpace(r.FormValue("tender"))
	if tender == "" {
		tender = strings.TrimSpace(r.URL.Query().Get("tender_name"))
	}
	if tender == "" {
		s.respondError(w, http.StatusBadRequest, "tender is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		s.respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if s.accept != nil && !s.accept(strings.ToLower(filepath.Ext(name))) {
		s.respondError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported file type %q", filepath.Ext(name)))
		return
	}

	path, err := s.saveUpload(file, name)
	if err != nil {
		s.logger.Error("saving upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	ack, err := s.queue.Submit(path, tender)
	if err != nil {
		_ = os.RemoveAll(filepath.Dir(path))
		if errors.Is(err, indexer.ErrQueueFull) || errors.Is(err, indexer.ErrQueueClosed) {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("ingest queued", zap.String("job_id", ack.JobID), zap.String("file", name), zap.String("tender", tender))
	s.respondJSON(w, http.StatusAccepted, ack)
}

// saveUpload writes the upload to <uploadDir>/<random>/<name>, keeping the original filename.
func (s *Server) saveUpload(src io.Reader, name string) (string, error) {
	dir := filepath.Join(s.uploadDir, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	return path, dst.Close()
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		s.respondError(w, http.StatusNotImplemented, "ingestion not enabled")
		return
	}
	job, ok := s.queue.Status(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleListTenders(w http.ResponseWriter, r *http.Request) {
	if s.tenders == nil {
		s.respondError(w, http.StatusNotImplemented, "tender listing not enabled")
		return
	}
	tenders, err := s.tenders.ListTenders(r.Context())
	if err != nil {
		s.logger.Error("list tenders failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"tenders": tenders})
}

func (s *Server) handleGetClause(w http.ResponseWriter, r *http.Request) {
	if s.clauses == nil {
		s.respondError(w, http.StatusNotImplemented, "clause lookup not enabled")
		return
	}
	node, err := s.clauses.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, models.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "clause not found")
		return
	}
	if err != nil {
		s.logger.Error("get clause failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, node)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.respondError(w, http.StatusNotImplemented, "status not enabled")
		return
	}
	st, err := s.status.Collect(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
