package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/KaraokeScore/pkg/karaoke"
	"github.com/himanishpuri/KaraokeScore/pkg/karaoke/scoring"
	"github.com/himanishpuri/KaraokeScore/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service karaoke.Service
	config  *ServerConfig
	log     karaoke.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Listen         string
	DBPath         string
	TempDir        string
	MaxUploadBytes int64
	ScoreTimeout   time.Duration
	AllowedOrigins []string

	// Middleware wraps the whole mux, outermost first.
	Middleware []func(http.Handler) http.Handler
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// NewServer creates a new server instance
func NewServer(service karaoke.Service, config *ServerConfig, log karaoke.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 50 << 20
	}
	if config.ScoreTimeout <= 0 {
		config.ScoreTimeout = 15 * time.Minute
	}
	return &Server{service: service, config: config, log: log}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps a scoring result to an HTTP status.
func statusFor(res scoring.Result) int {
	f, failed := res.Failure()
	if !failed {
		return http.StatusOK
	}
	switch f.Stage {
	case scoring.StageInput:
		return http.StatusBadRequest
	case scoring.StageExtraction, scoring.StageAlignment, scoring.StageScoring:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "KaraokeScore API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"metrics":       "GET /metrics",
			"score":         "POST /api/score",
			"scoreContours": "POST /api/score/contours",
			"inspect":       "POST /api/inspect",
			"sessions":      "GET /api/sessions",
			"getSession":    "GET /api/sessions/{id}",
			"deleteSession": "DELETE /api/sessions/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().Format(time.RFC3339),
	})
}

// saveFormFile stores the multipart file field under the temp dir.
func (s *Server) saveFormFile(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("%s file is required", field)
	}
	defer file.Close()
	return utils.SaveUpload(s.config.TempDir, field, header.Filename, file)
}

// handleScore handles POST /api/score (multipart upload of "user" and "reference")
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.ScoreTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := karaoke.ScoreRequest{
		Method:      r.FormValue("method"),
		Difficulty:  r.FormValue("difficulty"),
		TrackFilter: r.FormValue("track"),
	}
	if v := r.FormValue("tolerance"); v != "" {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil || !(tol >= 0) {
			s.respondError(w, http.StatusBadRequest, "tolerance must be zero or a positive number of cents")
			return
		}
		req.Tolerance = &tol
	}
	if v := r.FormValue("advice"); v != "" {
		advice, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "advice must be a boolean")
			return
		}
		req.Advice = advice
	}

	for _, f := range []struct {
		field string
		dst   *string
	}{{"user", &req.UserPath}, {"reference", &req.ReferencePath}} {
		path, err := s.saveFormFile(r, f.field)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		defer os.Remove(path)
		*f.dst = path
	}

	rep := s.service.Analyze(ctx, req)
	s.respondJSON(w, statusFor(rep.Result), rep)
}

// handleScoreContours handles POST /api/score/contours
func (s *Server) handleScoreContours(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	var req karaoke.ContourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Errorf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := ValidateContours(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if n := len(req.User) + len(req.Reference); n > ContourWarningThreshold {
		s.log.Warnf("Large contour request: %d samples", n)
	}

	res := s.service.ScoreContours(r.Context(), req)
	s.respondJSON(w, statusFor(res), res)
}

// handleInspect handles POST /api/inspect (multipart upload of "file")
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	path, err := s.saveFormFile(r, "file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(path)

	info, err := s.service.Inspect(r.Context(), path)
	if err != nil {
		s.log.Warnf("Inspect failed: %v", err)
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	info.Path = ""
	s.respondJSON(w, http.StatusOK, info)
}

// handleListSessions handles GET /api/sessions?limit=&offset=
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := s.service.ListSessions(limit, offset)
	if err != nil {
		s.log.Errorf("Failed to list sessions: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve sessions")
		return
	}
	if sessions == nil {
		sessions = []karaoke.Session{}
	}

	s.respondJSON(w, http.StatusOK, ListSessionsResponse{
		Sessions: sessions,
		Count:    len(sessions),
		Limit:    limit,
		Offset:   offset,
	})
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.service.GetSession(id)
	if err != nil {
		s.sessionError(w, id, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

// handleDeleteSession handles DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.service.DeleteSession(id); err != nil {
		s.sessionError(w, id, err)
		return
	}

	s.log.Infof("Deleted session %s", id)
	s.respondJSON(w, http.StatusOK, DeleteSessionResponse{
		Message: "Session deleted successfully",
		ID:      id,
	})
}

func (s *Server) sessionError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, karaoke.ErrSessionNotFound) {
		s.log.Warnf("Session not found: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Session %s not found", id))
		return
	}
	s.log.Errorf("Session %s: %v", id, err)
	s.respondError(w, http.StatusInternalServerError, "Failed to access session")
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
