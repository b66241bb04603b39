package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foxzi/ofertabot/internal/api"
	"github.com/foxzi/ofertabot/internal/config"
	"github.com/foxzi/ofertabot/internal/db"
	"github.com/foxzi/ofertabot/internal/dispatch"
	"github.com/foxzi/ofertabot/internal/history"
	"github.com/foxzi/ofertabot/internal/lock"
	"github.com/foxzi/ofertabot/internal/metrics"
	"github.com/foxzi/ofertabot/internal/repository"
	"github.com/foxzi/ofertabot/internal/schedule"
	"github.com/foxzi/ofertabot/internal/secrets"
	"github.com/foxzi/ofertabot/internal/whatsapp"
)

// App is the main application
type App struct {
	config        *config.Config
	version       string
	logger        *slog.Logger
	db            *db.DB
	redis         *redis.Client
	history       *history.Store
	worker        *dispatch.Worker
	schedules     *schedule.Service
	apiServer     *api.Server
	metricsServer *metrics.Server
}

// New opens storage and builds every component. Nothing is started.
func New(cfg *config.Config, version string, logger *slog.Logger) (*App, error) {
	a := &App{config: cfg, version: version, logger: logger}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.config

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = database
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var key []byte
	if cfg.Secrets.Key != "" {
		if key, err = secrets.ParseKey(cfg.Secrets.Key); err != nil {
			return err
		}
	} else {
		a.logger.Warn("secrets.key not set, gateway tokens are stored in plain text")
	}
	box, err := secrets.New(key)
	if err != nil {
		return err
	}

	automations := repository.NewAutomationRepository(database.DB)
	integrations := repository.NewIntegrationRepository(database.DB, box)
	settings := repository.NewSettingsRepository(database.DB)
	products := repository.NewProductRepository(database.DB)
	entries := repository.NewScheduleRepository(database.DB)

	a.history, err = history.Open(cfg.History.Path, cfg.History.Keep)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	var locker lock.Locker = lock.Noop{}
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = lock.NewRedisLocker(a.redis, cfg.Redis.LockTTL)
		a.logger.Info("per-user dispatch lock enabled", "redis_addr", cfg.Redis.Addr)
	}

	m := metrics.New()
	metrics.SetGlobal(m)
	if cfg.Metrics.Enabled {
		a.metricsServer, err = metrics.NewServer(m, cfg.Metrics.ListenAddr, cfg.Metrics.Path, cfg.Metrics.AllowedIPs, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
	}

	a.worker = dispatch.New(dispatch.Deps{
		Configs:     automations,
		Credentials: integrations,
		Products:    products,
		Templates:   settings,
		Log:         entries,
		Gateway:     whatsapp.NewClient(cfg.Gateway.Timeout),
		Reports:     a.history,
		Locker:      locker,
	}, dispatch.Config{
		Location:          cfg.Location(),
		DefaultBaseURL:    cfg.Gateway.BaseURL,
		DestinationDelay:  cfg.Dispatch.DestinationDelay,
		Concurrency:       cfg.Dispatch.Concurrency,
		PollInterval:      cfg.Dispatch.PollInterval,
		RotationOnFailure: cfg.RotationPolicy(),
	}, a.logger)

	a.schedules = schedule.NewService(entries, products, cfg.Location(), a.logger)

	a.apiServer = api.NewServer(api.Deps{
		Dispatcher:   a.worker,
		Reports:      a.history,
		Automation:   automations,
		Integrations: integrations,
		Settings:     settings,
		Products:     products,
		Schedules:    a.schedules,
	}, api.Config{
		ListenAddr: cfg.Server.ListenAddr,
		APIKey:     cfg.Server.APIKey,
		Version:    a.version,
	}, a.logger)

	return nil
}

// Dispatcher returns the dispatch worker for one-off passes
func (a *App) Dispatcher() *dispatch.Worker { return a.worker }

// Schedules returns the manual scheduling service
func (a *App) Schedules() *schedule.Service { return a.schedules }

// History returns the pass report store
func (a *App) History() *history.Store { return a.history }

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting ofertabot",
		"version", a.version,
		"api_addr", a.config.Server.ListenAddr,
		"timezone", a.config.Dispatch.Timezone,
		"dispatch_enabled", a.config.Dispatch.Enabled,
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.logger.Warn("redis unreachable, passes will fail to lock until it recovers", "error", err)
		}
	}

	if a.config.Dispatch.Enabled {
		a.worker.Start()
	}

	errCh := make(chan error, 2)

	go func() {
		if err := a.apiServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server error", "error", runErr)
	}

	a.Shutdown(context.Background())
	return runErr
}

// Shutdown stops the worker and the servers, then releases storage
func (a *App) Shutdown(ctx context.Context) {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// stop taking new passes before the servers go away
	a.worker.Stop()

	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}

	a.Close()
	a.logger.Info("shutdown complete")
}

// Close releases storage and the redis client
func (a *App) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Error("history close error", "error", err)
		}
		a.history = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", "error", err)
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("database close error", "error", err)
		}
		a.db = nil
	}
}

// NewLogger creates a logger based on configuration
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
