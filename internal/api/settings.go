package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/ofertabot/internal/models"
)

// AutomationRequest is the body of PUT /automation. Omitted fields keep
// their stored value.
type AutomationRequest struct {
	IsActive        *bool          `json:"is_active"`
	Days            *models.DaySet `json:"days"`
	StartHour       *models.Clock  `json:"start_hour"`
	EndHour         *models.Clock  `json:"end_hour"`
	IntervalMinutes *int           `json:"interval_minutes"`
}

// IntegrationRequest is the body of PUT /integrations/whatsapp. An empty
// token keeps the stored one.
type IntegrationRequest struct {
	Enabled      bool     `json:"enabled"`
	InstanceID   string   `json:"instance_id"`
	Token        string   `json:"token,omitempty"`
	BaseURL      string   `json:"base_url,omitempty"`
	Destinations []string `json:"destinations"`
}

// IntegrationResponse never echoes the token
type IntegrationResponse struct {
	Enabled      bool     `json:"enabled"`
	InstanceID   string   `json:"instance_id"`
	TokenSet     bool     `json:"token_set"`
	BaseURL      string   `json:"base_url,omitempty"`
	Destinations []string `json:"destinations"`
	ChatIDs      []string `json:"chat_ids"`
	Complete     bool     `json:"complete"`
}

func integrationResponse(c *models.MessagingCredentials) IntegrationResponse {
	dests := c.Destinations
	if dests == nil {
		dests = []string{}
	}
	chats := c.ChatIDs()
	if chats == nil {
		chats = []string{}
	}
	return IntegrationResponse{
		Enabled:      c.Enabled,
		InstanceID:   c.InstanceID,
		TokenSet:     c.Token != "",
		BaseURL:      c.BaseURL,
		Destinations: dests,
		ChatIDs:      chats,
		Complete:     c.Complete(),
	}
}

// handleGetAutomation handles GET /users/{userID}/automation
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Automation.GetOrDefault(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.logger.Error("failed to load automation config", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to load automation config")
		return
	}
	s.sendJSON(w, http.StatusOK, cfg)
}

// handlePutAutomation handles PUT /users/{userID}/automation
func (s *Server) handlePutAutomation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AutomationRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg, err := s.deps.Automation.GetOrDefault(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load automation config", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to load automation config")
		return
	}

	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}
	if req.Days != nil {
		cfg.Days = *req.Days
	}
	if req.StartHour != nil {
		cfg.StartHour = *req.StartHour
	}
	if req.EndHour != nil {
		cfg.EndHour = *req.EndHour
	}
	if req.IntervalMinutes != nil {
		cfg.IntervalMinutes = *req.IntervalMinutes
	}

	if err := cfg.Validate(); err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Automation.SaveSettings(r.Context(), cfg); err != nil {
		s.logger.Error("failed to save automation config", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to save automation config")
		return
	}

	s.logger.Info("automation settings saved", "user_id", userID, "active", cfg.IsActive)
	s.sendJSON(w, http.StatusOK, cfg)
}

// handleGetIntegration handles GET /users/{userID}/integrations/whatsapp
func (s *Server) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	creds, err := s.deps.Integrations.Get(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load integration", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to load integration")
		return
	}
	if creds == nil {
		s.sendError(w, http.StatusNotFound, "integration not configured")
		return
	}
	s.sendJSON(w, http.StatusOK, integrationResponse(creds))
}

// handlePutIntegration handles PUT /users/{userID}/integrations/whatsapp
func (s *Server) handlePutIntegration(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req IntegrationRequest
	if err := decode(r, &req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Destinations) > models.MaxDestinations {
		s.sendError(w, http.StatusBadRequest, "at most 3 destinations are supported")
		return
	}

	existing, err := s.deps.Integrations.Get(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load integration", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to load integration")
		return
	}

	creds := &models.MessagingCredentials{
		UserID:       userID,
		Enabled:      req.Enabled,
		InstanceID:   strings.TrimSpace(req.InstanceID),
		Token:        strings.TrimSpace(req.Token),
		BaseURL:      strings.TrimSpace(req.BaseURL),
		Destinations: req.Destinations,
	}
	if creds.Token == "" && existing != nil {
		creds.Token = existing.Token
	}

	if err := s.deps.Integrations.Save(r.Context(), creds); err != nil {
		s.logger.Error("failed to save integration", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to save integration")
		return
	}
	s.logger.Info("integration saved", "user_id", userID, "destinations", len(creds.Destinations))
	s.sendJSON(w, http.StatusOK, integrationResponse(creds))
}

// handleGetSettings handles GET /users/{userID}/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	settings, err := s.deps.Settings.Get(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to load settings", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if settings == nil {
		settings = &models.AppSettings{UserID: userID}
	}
	s.sendJSON(w, http.StatusOK, settings)
}

// handlePutSettings handles PUT /users/{userID}/settings
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var settings models.AppSettings
	if err := decode(r, &settings); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	settings.UserID = userID

	if err := s.deps.Settings.Save(r.Context(), &settings); err != nil {
		s.logger.Error("failed to save settings", "user_id", userID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	s.sendJSON(w, http.StatusOK, settings)
}
