package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/ofertabot/internal/models"
	"github.com/foxzi/ofertabot/internal/schedule"
)

// CreateScheduleRequest is the body of POST /schedules
type CreateScheduleRequest struct {
	ProductID     string           `json:"product_id"`
	ScheduledTime time.Time        `json:"scheduled_time"`
	Frequency     models.Frequency `json:"frequency"`
}

// BatchScheduleRequest is the body of POST /schedules/batch. Exactly one of
// product_id and all_active selects the products; start_date is a calendar
// date (YYYY-MM-DD) in the deployment timezone.
type BatchScheduleRequest struct {
	ProductID string         `json:"product_id,omitempty"`
	AllActive bool           `json:"all_active,omitempty"`
	StartDate string         `json:"start_date"`
	Times     []models.Clock `json:"times"`
}

// DeleteSchedulesRequest is the body of DELETE /schedules
type DeleteSchedulesRequest struct {
	IDs []string `json:"ids"`
}

// DeleteSchedulesResponse reports how many entries were removed
type DeleteSchedulesResponse struct {
	Deleted int64 `json:"deleted"`
}

// handleListSchedules handles GET /users/{userID}/schedules
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	entries, err := s.deps.Schedules.List(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to list schedule", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list schedule")
		return
	}
	s.sendJSON(w, http.StatusOK, entries)
}

// handleCreateSchedule handles POST /users/{userID}/schedules
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req CreateScheduleRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	entry, err := s.deps.Schedules.CreateEntry(r.Context(), userID, req.ProductID, req.ScheduledTime, req.Frequency)
	if err != nil {
		s.sendScheduleError(w, userID, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, entry)
}

// handleBatchSchedule handles POST /users/{userID}/schedules/batch
func (s *Server) handleBatchSchedule(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req BatchScheduleRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var target models.Target
	switch {
	case req.AllActive && req.ProductID == "":
		target = models.AllActiveProducts()
	case !req.AllActive && req.ProductID != "":
		target = models.SingleProduct(req.ProductID)
	default:
		s.sendError(w, http.StatusBadRequest, "set either product_id or all_active")
		return
	}

	start, err := time.ParseInLocation(time.DateOnly, req.StartDate, s.deps.Schedules.Location())
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}

	res, err := s.deps.Schedules.Batch(r.Context(), userID, target, start, req.Times)
	if err != nil {
		s.sendScheduleError(w, userID, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, res)
}

// handleDeleteSchedules handles DELETE /users/{userID}/schedules
func (s *Server) handleDeleteSchedules(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req DeleteSchedulesRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		s.sendError(w, http.StatusBadRequest, "ids is required")
		return
	}

	n, err := s.deps.Schedules.Delete(r.Context(), userID, req.IDs)
	if err != nil {
		s.logger.Error("failed to delete schedule entries", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to delete schedule entries")
		return
	}
	s.sendJSON(w, http.StatusOK, DeleteSchedulesResponse{Deleted: n})
}

func (s *Server) sendScheduleError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, schedule.ErrSlotTaken):
		s.sendError(w, http.StatusConflict, err.Error())
	case errors.Is(err, schedule.ErrProductNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, schedule.ErrInvalidTime), errors.Is(err, schedule.ErrInvalidFrequency):
		s.sendError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("schedule request failed", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "schedule request failed")
	}
}
