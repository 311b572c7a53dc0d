package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if !cfg.Cache.Enabled || cfg.Cache.DefaultTTL != 60*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Cache.Fallback != "promote" {
		t.Errorf("fallback = %s", cfg.Cache.Fallback)
	}
	if cfg.Guards.MaxDimensions != 32 || cfg.Guards.GlobalTimeout != 5*time.Minute {
		t.Errorf("guards = %+v", cfg.Guards)
	}
	if cfg.Guards.HealthTimeout != 2*time.Second {
		t.Errorf("healthTimeout = %v", cfg.Guards.HealthTimeout)
	}
	if cfg.Stats.Sink != "stdout" {
		t.Errorf("stats sink = %s", cfg.Stats.Sink)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  port: 9090
cache:
  enabled: false
  redisAddr: localhost:6379
  defaultTtl: 45s
  fallback: fail
guards:
  maxDimensions: 4
stats:
  sink: postgres
  dsn: postgres://localhost/stats
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Cache.Enabled {
		t.Error("cache.enabled not overridden")
	}
	if cfg.Cache.RedisAddr != "localhost:6379" || cfg.Cache.DefaultTTL != 45*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Cache.Fallback != "fail" {
		t.Errorf("fallback = %s", cfg.Cache.Fallback)
	}
	if cfg.Guards.MaxDimensions != 4 {
		t.Errorf("maxDimensions = %d", cfg.Guards.MaxDimensions)
	}
	// Untouched keys keep their defaults.
	if cfg.Guards.MaxMetrics != 32 || cfg.Server.ReadTimeout != "30s" {
		t.Errorf("defaults lost: %+v", cfg.Guards)
	}
	if cfg.Stats.Sink != "postgres" || cfg.Stats.DSN != "postgres://localhost/stats" {
		t.Errorf("stats = %+v", cfg.Stats)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("explicitly named missing file accepted")
	}
}
