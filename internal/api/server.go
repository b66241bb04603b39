// Package api exposes dispatch and manual scheduling over HTTP for the
// dashboard and for external cron triggers.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/ofertabot/internal/dispatch"
	"github.com/foxzi/ofertabot/internal/metrics"
	"github.com/foxzi/ofertabot/internal/models"
	"github.com/foxzi/ofertabot/internal/schedule"
)

// Dispatcher runs passes and test sends
type Dispatcher interface {
	RunPass(ctx context.Context, now time.Time) (*dispatch.Report, error)
	TestSend(ctx context.Context, userID string) dispatch.Outcome
	DirectTest(ctx context.Context, creds *models.MessagingCredentials, chatID, message string) (string, error)
}

// ReportLister returns recent pass reports, newest first
type ReportLister interface {
	Recent(n int) ([]dispatch.Report, error)
}

// AutomationStore reads and writes the user-editable automation settings
type AutomationStore interface {
	GetOrDefault(ctx context.Context, userID string) (*models.AutomationConfig, error)
	SaveSettings(ctx context.Context, cfg *models.AutomationConfig) error
}

// IntegrationStore reads and writes messaging credentials
type IntegrationStore interface {
	Get(ctx context.Context, userID string) (*models.MessagingCredentials, error)
	Save(ctx context.Context, c *models.MessagingCredentials) error
}

// SettingsStore reads and writes app settings
type SettingsStore interface {
	Get(ctx context.Context, userID string) (*models.AppSettings, error)
	Save(ctx context.Context, s *models.AppSettings) error
}

// ProductStore is the product catalog
type ProductStore interface {
	Create(ctx context.Context, p *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
}

// Scheduler is the manual scheduling service
type Scheduler interface {
	Location() *time.Location
	List(ctx context.Context, userID string) ([]models.ScheduleEntry, error)
	Batch(ctx context.Context, userID string, target models.Target, startDate time.Time, times []models.Clock) (*schedule.Result, error)
	CreateEntry(ctx context.Context, userID, productID string, at time.Time, freq models.Frequency) (*models.ScheduleEntry, error)
	Delete(ctx context.Context, userID string, ids []string) (int64, error)
}

// Deps are the collaborators behind the handlers. Reports is optional.
type Deps struct {
	Dispatcher   Dispatcher
	Reports      ReportLister
	Automation   AutomationStore
	Integrations IntegrationStore
	Settings     SettingsStore
	Products     ProductStore
	Schedules    Scheduler
}

// Config holds API server settings
type Config struct {
	ListenAddr string
	APIKey     string
	Version    string
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
	config     Config
	logger     *slog.Logger
	startTime  time.Time
	now        func() time.Time
}

// NewServer creates a new API server
func NewServer(deps Deps, cfg Config, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		deps:      deps,
		config:    cfg,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
		now:       time.Now,
	}

	s.setupRoutes()
	return s
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(metrics.HTTPMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/dispatch/run", s.handleDispatchRun)
		r.Get("/dispatch/reports", s.handleDispatchReports)
		r.Post("/integrations/whatsapp/test", s.handleDirectTest)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/dispatch/test", s.handleTestSend)

			r.Get("/automation", s.handleGetAutomation)
			r.Put("/automation", s.handlePutAutomation)

			r.Get("/integrations/whatsapp", s.handleGetIntegration)
			r.Put("/integrations/whatsapp", s.handlePutIntegration)

			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)

			r.Get("/products", s.handleListProducts)
			r.Post("/products", s.handleCreateProduct)
			r.Put("/products/{productID}", s.handleUpdateProduct)
			r.Delete("/products/{productID}", s.handleDeleteProduct)

			r.Get("/schedules", s.handleListSchedules)
			r.Post("/schedules", s.handleCreateSchedule)
			r.Post("/schedules/batch", s.handleBatchSchedule)
			r.Delete("/schedules", s.handleDeleteSchedules)
		})
	})
}

// ListenAndServe starts the HTTP server. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
