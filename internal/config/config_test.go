package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/electritrack-bfa-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.StoreBackend != config.BackendSQLite {
		t.Errorf("expected sqlite backend, got %s", cfg.StoreBackend)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected retries disabled by default, got %d", cfg.MaxRetries)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC location, got %s", cfg.Location())
	}
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
  log_level: debug
store:
  backend: supabase
  watch_interval: 5s
mqtt:
  enabled: true
  broker: localhost:1883
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7070")

	cfg, err := config.LoadWithFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("expected env port 7070, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level from file, got %s", cfg.LogLevel)
	}
	if cfg.StoreBackend != config.BackendSupabase {
		t.Errorf("expected supabase backend, got %s", cfg.StoreBackend)
	}
	if cfg.WatchInterval != 5*time.Second {
		t.Errorf("expected 5s watch interval, got %s", cfg.WatchInterval)
	}
	if !cfg.MQTTEnabled || cfg.MQTTBroker != "localhost:1883" {
		t.Errorf("expected mqtt settings from file, got %v %s", cfg.MQTTEnabled, cfg.MQTTBroker)
	}
}

func TestLoadDotEnv_DoesNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TIMEZONE=Asia/Manila\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("TIMEZONE", "")
	os.Unsetenv("TIMEZONE")

	if err := config.LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("LOG_LEVEL"); got != "warn" {
		t.Errorf("expected existing env to win, got %s", got)
	}
	if got := os.Getenv("TIMEZONE"); got != "Asia/Manila" {
		t.Errorf("expected TIMEZONE from .env, got %s", got)
	}
	os.Unsetenv("TIMEZONE")
}
