package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/ofertabot/internal/dispatch"
	"github.com/foxzi/ofertabot/internal/models"
	"github.com/foxzi/ofertabot/internal/whatsapp"
)

const (
	defaultReportLimit = 20
	maxReportLimit     = 500
)

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// RunResponse is the response for POST /dispatch/run
type RunResponse struct {
	Report *dispatch.Report        `json:"report"`
	Counts map[dispatch.Status]int `json:"counts"`
}

// DirectTestRequest is the body of POST /integrations/whatsapp/test
type DirectTestRequest struct {
	InstanceID string `json:"instance_id"`
	Token      string `json:"token"`
	BaseURL    string `json:"base_url,omitempty"`
	ChatID     string `json:"chat_id"`
	Message    string `json:"message,omitempty"`
}

// DirectTestResponse carries the gateway's message id
type DirectTestResponse struct {
	DeliveryID string `json:"delivery_id"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleDispatchRun handles POST /api/v1/dispatch/run
func (s *Server) handleDispatchRun(w http.ResponseWriter, r *http.Request) {
	// the pass outlives a caller that hangs up
	ctx := context.WithoutCancel(r.Context())

	report, err := s.deps.Dispatcher.RunPass(ctx, s.now())
	if err != nil {
		s.logger.Error("dispatch pass failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "dispatch pass failed")
		return
	}
	s.sendJSON(w, http.StatusOK, RunResponse{Report: report, Counts: report.Counts()})
}

// handleDispatchReports handles GET /api/v1/dispatch/reports
func (s *Server) handleDispatchReports(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		s.sendJSON(w, http.StatusOK, []dispatch.Report{})
		return
	}

	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxReportLimit)
	}

	reports, err := s.deps.Reports.Recent(limit)
	if err != nil {
		s.logger.Error("failed to read dispatch reports", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to read reports")
		return
	}
	if reports == nil {
		reports = []dispatch.Report{}
	}
	s.sendJSON(w, http.StatusOK, reports)
}

// handleTestSend handles POST /api/v1/users/{userID}/dispatch/test
func (s *Server) handleTestSend(w http.ResponseWriter, r *http.Request) {
	out := s.deps.Dispatcher.TestSend(context.WithoutCancel(r.Context()), chi.URLParam(r, "userID"))

	status := http.StatusOK
	switch {
	case out.Status == dispatch.StatusError:
		status = http.StatusInternalServerError
	case out.Status == dispatch.StatusFailed:
		status = http.StatusBadGateway
	case out.Status.Skipped():
		status = http.StatusUnprocessableEntity
	}
	s.sendJSON(w, status, out)
}

// handleDirectTest handles POST /api/v1/integrations/whatsapp/test
func (s *Server) handleDirectTest(w http.ResponseWriter, r *http.Request) {
	var req DirectTestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	creds := &models.MessagingCredentials{
		Enabled:    true,
		InstanceID: req.InstanceID,
		Token:      req.Token,
		BaseURL:    req.BaseURL,
	}
	id, err := s.deps.Dispatcher.DirectTest(r.Context(), creds, req.ChatID, req.Message)
	if err != nil {
		var derr *whatsapp.DeliveryError
		switch {
		case errors.Is(err, whatsapp.ErrNotConfigured):
			s.sendError(w, http.StatusBadRequest, "instance_id, token and chat_id are required")
		case errors.As(err, &derr):
			s.sendError(w, http.StatusBadGateway, derr.Error())
		default:
			s.sendError(w, http.StatusBadGateway, "gateway request failed: "+err.Error())
		}
		return
	}
	s.sendJSON(w, http.StatusOK, DirectTestResponse{DeliveryID: id})
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}

// decode reads a JSON body, rejecting unknown fields
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
