package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestConfig writes a config file into a temp dir and returns its path.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 9090
monitor:
  online_window_seconds: 120
  stale_after_seconds: 300
  sweep_interval_seconds: 30
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeTestConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Monitor.SweepInterval() != 30*time.Second {
		t.Errorf("Monitor.SweepInterval() = %v, want 30s", cfg.Monitor.SweepInterval())
	}
}

func TestLoad_MonitorDefaults(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeTestConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// The on-demand window and sweep threshold default to different values.
	if cfg.Monitor.OnlineWindow() != 2*time.Minute {
		t.Errorf("Monitor.OnlineWindow() = %v, want 2m", cfg.Monitor.OnlineWindow())
	}
	if cfg.Monitor.StaleAfter() != 5*time.Minute {
		t.Errorf("Monitor.StaleAfter() = %v, want 5m", cfg.Monitor.StaleAfter())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTestConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeTestConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for missing JWT secret, got nil")
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "too-short"
`
	_, err := Load(writeTestConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for short JWT secret, got nil")
	}
}

func TestLoad_InvalidMonitorThresholds(t *testing.T) {
	// Sweep threshold tighter than the on-demand window would flip devices
	// offline while IsOnline still reports them online.
	content := `
database:
  path: "/tmp/test.db"
monitor:
  online_window_seconds: 300
  stale_after_seconds: 120
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	_, err := Load(writeTestConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for inverted monitor thresholds, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	t.Setenv("AIRCORE_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("AIRCORE_API_PORT", "7070")

	cfg, err := Load(writeTestConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 7070 {
		t.Errorf("API.Port = %d, want 7070", cfg.API.Port)
	}
}
