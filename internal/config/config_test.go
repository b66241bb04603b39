package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxzi/ofertabot/internal/dispatch"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	content := `
server:
  listen_addr: ":8181"
  api_key: "file-key"

database:
  path: "/tmp/ofertabot.db"

dispatch:
  enabled: false
  poll_interval: 2m
  timezone: "UTC"
  concurrency: 8
  destination_delay: 500ms
  rotation_on_failure: consume

gateway:
  base_url: "https://7103.api.greenapi.com"
  timeout: 10s

redis:
  enabled: true
  addr: "redis:6379"
  lock_ttl: 90s

history:
  keep: 50

metrics:
  allowed_ips: ["127.0.0.1", "10.0.0.0/8"]

logging:
  level: "debug"
  format: "text"
`
	cfg, err := Load(writeConfig(t, t.TempDir(), content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ListenAddr != ":8181" || cfg.Server.APIKey != "file-key" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Dispatch.Enabled {
		t.Error("Dispatch.Enabled = true, want false from file")
	}
	if cfg.Dispatch.PollInterval != 2*time.Minute {
		t.Errorf("PollInterval = %v, want 2m", cfg.Dispatch.PollInterval)
	}
	if cfg.Dispatch.Concurrency != 8 || cfg.Dispatch.DestinationDelay != 500*time.Millisecond {
		t.Errorf("Dispatch = %+v", cfg.Dispatch)
	}
	if cfg.RotationPolicy() != dispatch.RotationConsume {
		t.Errorf("RotationPolicy() = %v, want consume", cfg.RotationPolicy())
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
	if cfg.Gateway.Timeout != 10*time.Second {
		t.Errorf("Gateway.Timeout = %v", cfg.Gateway.Timeout)
	}
	if !cfg.Redis.Enabled || cfg.Redis.LockTTL != 90*time.Second {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.History.Keep != 50 {
		t.Errorf("History.Keep = %d", cfg.History.Keep)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should default to true")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, t.TempDir(), "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"listen_addr", cfg.Server.ListenAddr, ":8090"},
		{"database.path", cfg.Database.Path, "/var/lib/ofertabot/app.db"},
		{"dispatch.enabled", cfg.Dispatch.Enabled, true},
		{"dispatch.poll_interval", cfg.Dispatch.PollInterval, time.Minute},
		{"dispatch.timezone", cfg.Dispatch.Timezone, "America/Sao_Paulo"},
		{"dispatch.concurrency", cfg.Dispatch.Concurrency, 4},
		{"dispatch.destination_delay", cfg.Dispatch.DestinationDelay, time.Second},
		{"dispatch.rotation_on_failure", cfg.Dispatch.RotationOnFailure, "retry"},
		{"gateway.base_url", cfg.Gateway.BaseURL, "https://api.green-api.com"},
		{"gateway.timeout", cfg.Gateway.Timeout, 30 * time.Second},
		{"redis.lock_ttl", cfg.Redis.LockTTL, 2 * time.Minute},
		{"history.keep", cfg.History.Keep, 500},
		{"metrics.listen_addr", cfg.Metrics.ListenAddr, ":9090"},
		{"metrics.path", cfg.Metrics.Path, "/metrics"},
		{"logging.level", cfg.Logging.Level, "info"},
		{"logging.format", cfg.Logging.Format, "json"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if cfg.Location().String() != "America/Sao_Paulo" {
		t.Errorf("Location() = %v", cfg.Location())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	key := strings.Repeat("ab", 32)
	t.Setenv(EnvSecretKey, key)
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvRedisPassword, "s3cret")

	cfg, err := Load(writeConfig(t, t.TempDir(), "server:\n  api_key: file-key\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Secrets.Key != key || cfg.Server.APIKey != "env-key" || cfg.Redis.Password != "s3cret" {
		t.Errorf("env overrides not applied: secrets=%q api=%q redis=%q", cfg.Secrets.Key, cfg.Server.APIKey, cfg.Redis.Password)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(EnvAPIKey+"=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	// t.Setenv registers cleanup for the variable godotenv sets
	t.Setenv(EnvAPIKey, "")
	os.Unsetenv(EnvAPIKey)

	cfg, err := Load(writeConfig(t, dir, "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.APIKey != "from-dotenv" {
		t.Errorf("APIKey = %q, want value from .env", cfg.Server.APIKey)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad timezone", "dispatch:\n  timezone: Mars/Olympus\n", "dispatch.timezone"},
		{"bad concurrency", "dispatch:\n  concurrency: -1\n", "concurrency"},
		{"bad policy", "dispatch:\n  rotation_on_failure: drop\n", "rotation_on_failure"},
		{"bad base url", "gateway:\n  base_url: ftp://x\n", "base_url"},
		{"bad secret key", "secrets:\n  key: short\n", "secrets.key"},
		{"bad allowed ip", "metrics:\n  allowed_ips: [\"nope\"]\n", "allowed_ips"},
		{"bad log level", "logging:\n  level: loud\n", "logging.level"},
		{"bad yaml", "server: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, t.TempDir(), tt.content))
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
