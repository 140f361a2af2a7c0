package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/logging"
	"github.com/autobrr/go-bitrate/internal/probe"
	"github.com/autobrr/go-bitrate/internal/report"
)

type analyzeRequest struct {
	Path          string  `json:"path" validate:"required"`
	WindowLength  float64 `json:"window_length" validate:"omitempty,gt=0"`
	WindowStep    float64 `json:"window_step" validate:"omitempty,gt=0"`
	MaxSamples    int     `json:"max_samples"`
	IncludeFrames bool    `json:"include_frames"`
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": report.FormatVersion(report.AppVersion),
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	path, err := s.resolvePath(req.Path)
	if errors.Is(err, errOutsideRoot) {
		respondError(w, r, http.StatusForbidden, "PATH_OUTSIDE_ROOT", err.Error(), err)
		return
	}
	if err != nil {
		status, code := classify(err)
		respondError(w, r, status, code, err.Error(), err)
		return
	}
	rep, err := s.runner.AnalyzeFileWithOptions(r.Context(), path, s.requestOptions(req))
	if err != nil {
		status, code := classify(err)
		respondError(w, r, status, code, err.Error(), err)
		return
	}

	// The path the client sent is the reference it knows.
	rep.Ref = req.Path
	respondJSON(w, http.StatusOK, report.NewDocument(rep, report.JSONOptions{Frames: req.IncludeFrames}))
}

var errOutsideRoot = errors.New("path resolves outside the server root")

// resolvePath confines request paths to the configured root, following
// symlinks. Without a root the path is used as given. Paths that do not
// exist are returned unresolved so the prober reports them as missing.
func (s *Server) resolvePath(requested string) (string, error) {
	if s.cfg.Root == "" {
		return requested, nil
	}
	joined := filepath.Join(s.cfg.Root, filepath.Clean("/"+requested))

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return joined, nil
		}
		return "", err
	}
	root, err := filepath.EvalSymlinks(s.cfg.Root)
	if err != nil {
		root = filepath.Clean(s.cfg.Root)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return joined, nil
}

func (s *Server) requestOptions(req analyzeRequest) analysis.Options {
	opts := s.base
	if req.WindowLength > 0 {
		opts.WindowLength = req.WindowLength
		opts.WindowStep = 0
	}
	if req.WindowStep > 0 {
		opts.WindowStep = req.WindowStep
	}
	if req.MaxSamples != 0 {
		opts.MaxSamples = req.MaxSamples
	}
	return opts
}

func classify(err error) (int, string) {
	var malformed *analysis.MalformedRecordError
	var optsErr *analysis.OptionsError
	switch {
	case errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &optsErr):
		return http.StatusBadRequest, "INVALID_OPTIONS"
	case errors.Is(err, analysis.ErrEmptySeries):
		return http.StatusBadRequest, "EMPTY_SERIES"
	case errors.As(err, &malformed):
		return http.StatusBadRequest, "MALFORMED_FRAME"
	case errors.Is(err, probe.ErrUnsupported), errors.Is(err, probe.ErrNoVideoStream):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_MEDIA"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	requestID := chimiddleware.GetReqID(r.Context())
	if err != nil && status >= http.StatusInternalServerError {
		logging.Error().Err(err).Str("request_id", requestID).Str("code", code).Msg("analyze request failed")
	} else if err != nil {
		logging.Warn().Err(err).Str("request_id", requestID).Str("code", code).Msg("analyze request rejected")
	}
	respondJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message, RequestID: requestID}})
}
