package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("UNDO_WINDOW", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Fatalf("expected default storage driver sqlite, got %q", cfg.StorageDriver)
	}
	if cfg.UndoWindow != 4*time.Second {
		t.Fatalf("expected default undo window 4s, got %v", cfg.UndoWindow)
	}
	if cfg.MirrorTarget != "none" {
		t.Fatalf("expected mirroring disabled by default, got %q", cfg.MirrorTarget)
	}
}

func TestLoadLayersFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardsnap.yaml")
	body := []byte("storage_driver: postgres\nundo_window: 10s\ncollation_language: de\napi_rate_limit_rps: 5\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("UNDO_WINDOW", "")
	t.Setenv("COLLATION_LANGUAGE", "sv")
	t.Setenv("API_RATE_LIMIT_RPS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StorageDriver != "postgres" {
		t.Fatalf("expected file override postgres, got %q", cfg.StorageDriver)
	}
	if cfg.UndoWindow != 10*time.Second {
		t.Fatalf("expected file undo window 10s, got %v", cfg.UndoWindow)
	}
	if cfg.CollationLanguage != "sv" {
		t.Fatalf("expected env to win over file, got %q", cfg.CollationLanguage)
	}
	if cfg.APIRateLimitRPS != 5 {
		t.Fatalf("expected file rate limit 5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.APIPort != "8080" {
		t.Fatalf("expected untouched default port, got %q", cfg.APIPort)
	}
}

func TestLoadIgnoresMalformedEnvValues(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")
	t.Setenv("UNDO_WINDOW", "soon")
	t.Setenv("SESSION_ACTIVE", "maybe")
	t.Setenv("IMAGE_MAX_EDGE", "big")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UndoWindow != 4*time.Second || cfg.SessionActive || cfg.ImageMaxEdge != 1600 {
		t.Fatalf("expected fallbacks for malformed values, got %+v", cfg)
	}
}

func TestLoadFailsOnUnreadableFile(t *testing.T) {
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadBreakerSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardsnap.yaml")
	body := []byte("breaker_min_requests: 4\nbreaker_open_timeout: 5s\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("BREAKER_ENABLED", "false")
	t.Setenv("BREAKER_MIN_REQUESTS", "")
	t.Setenv("BREAKER_OPEN_TIMEOUT", "")
	t.Setenv("BREAKER_FAILURE_RATIO", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BreakerEnabled {
		t.Fatalf("expected env to disable the breaker")
	}
	if cfg.BreakerMinRequests != 4 || cfg.BreakerOpenTimeout != 5*time.Second {
		t.Fatalf("expected file breaker settings, got %d / %v", cfg.BreakerMinRequests, cfg.BreakerOpenTimeout)
	}
	if cfg.BreakerFailureRatio != 0.25 {
		t.Fatalf("expected env failure ratio 0.25, got %v", cfg.BreakerFailureRatio)
	}
}
