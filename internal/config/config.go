package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/foxzi/ofertabot/internal/dispatch"
	"github.com/foxzi/ofertabot/internal/metrics"
	"github.com/foxzi/ofertabot/internal/secrets"
)

// Environment variables that override values from the YAML file
const (
	EnvSecretKey     = "OFERTABOT_SECRET_KEY"
	EnvAPIKey        = "OFERTABOT_API_KEY"
	EnvRedisPassword = "OFERTABOT_REDIS_PASSWORD"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Redis    RedisConfig    `yaml:"redis"`
	History  HistoryConfig  `yaml:"history"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`

	location *time.Location
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	APIKey     string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type DispatchConfig struct {
	// Enabled runs the periodic pass inside the server process. When false
	// passes are triggered only through the API or the CLI.
	Enabled           bool          `yaml:"enabled"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	Timezone          string        `yaml:"timezone"`
	Concurrency       int           `yaml:"concurrency"`
	DestinationDelay  time.Duration `yaml:"destination_delay"`
	RotationOnFailure string        `yaml:"rotation_on_failure"`
}

type GatewayConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SecretsConfig struct {
	// Key is a 32-byte key, hex encoded or raw, used to encrypt gateway tokens
	Key string `yaml:"key"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
	Keep int    `yaml:"keep"`
}

type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"`
	Path       string   `yaml:"path"`
	AllowedIPs []string `yaml:"allowed_ips"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path. A .env file next to it or in the
// working directory is loaded first; variables already set in the
// environment win.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultToggles()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Location returns the dispatch timezone. It is set by Load.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// RotationPolicy returns the configured rotation_on_failure policy
func (c *Config) RotationPolicy() dispatch.RotationPolicy {
	return dispatch.RotationPolicy(c.Dispatch.RotationOnFailure)
}

// defaultToggles seeds booleans whose default is true, since an absent key
// cannot be told apart from false after decoding
func defaultToggles() *Config {
	return &Config{
		Dispatch: DispatchConfig{Enabled: true},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

func loadDotEnv(paths ...string) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("failed to load %s: %w", abs, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvSecretKey); v != "" {
		cfg.Secrets.Key = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Redis.Password = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/ofertabot/app.db"
	}
	if cfg.Dispatch.PollInterval == 0 {
		cfg.Dispatch.PollInterval = time.Minute
	}
	if cfg.Dispatch.Timezone == "" {
		cfg.Dispatch.Timezone = "America/Sao_Paulo"
	}
	if cfg.Dispatch.Concurrency == 0 {
		cfg.Dispatch.Concurrency = 4
	}
	if cfg.Dispatch.DestinationDelay == 0 {
		cfg.Dispatch.DestinationDelay = time.Second
	}
	if cfg.Dispatch.RotationOnFailure == "" {
		cfg.Dispatch.RotationOnFailure = string(dispatch.RotationRetry)
	}
	if cfg.Gateway.BaseURL == "" {
		cfg.Gateway.BaseURL = "https://api.green-api.com"
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 30 * time.Second
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 2 * time.Minute
	}
	if cfg.History.Path == "" {
		cfg.History.Path = "/var/lib/ofertabot/history.db"
	}
	if cfg.History.Keep == 0 {
		cfg.History.Keep = 500
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	loc, err := time.LoadLocation(cfg.Dispatch.Timezone)
	if err != nil {
		return fmt.Errorf("dispatch.timezone: %w", err)
	}
	cfg.location = loc

	if cfg.Dispatch.PollInterval < 0 {
		return fmt.Errorf("dispatch.poll_interval must be positive")
	}
	if cfg.Dispatch.Concurrency < 1 {
		return fmt.Errorf("dispatch.concurrency must be at least 1")
	}
	if cfg.Dispatch.DestinationDelay < 0 {
		return fmt.Errorf("dispatch.destination_delay must not be negative")
	}
	if !cfg.RotationPolicy().Valid() {
		return fmt.Errorf("dispatch.rotation_on_failure must be %q or %q", dispatch.RotationRetry, dispatch.RotationConsume)
	}
	if cfg.Gateway.Timeout < 0 {
		return fmt.Errorf("gateway.timeout must be positive")
	}
	if !strings.HasPrefix(cfg.Gateway.BaseURL, "http://") && !strings.HasPrefix(cfg.Gateway.BaseURL, "https://") {
		return fmt.Errorf("gateway.base_url must be an http(s) URL")
	}
	if cfg.Secrets.Key != "" {
		if _, err := secrets.ParseKey(cfg.Secrets.Key); err != nil {
			return fmt.Errorf("secrets.key: %w", err)
		}
	}
	if cfg.Redis.Enabled && cfg.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lock_ttl must be positive")
	}
	if cfg.History.Keep < 0 {
		return fmt.Errorf("history.keep must not be negative")
	}
	if _, err := metrics.ParseAllowedNetworks(cfg.Metrics.AllowedIPs); err != nil {
		return fmt.Errorf("metrics.allowed_ips: %w", err)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text")
	}
	return nil
}
