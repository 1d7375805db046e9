package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdirTemp moves the test into an empty directory so a developer's
// local ajsync.yaml cannot leak into the run.
func chdirTemp(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })

	// Point home at the temp dir too, so ~/.config/ajanda is empty.
	t.Setenv("HOME", dir)

	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("sync.interval = %v, want 5m", cfg.Sync.Interval)
	}
	if cfg.Sync.ProbeInterval != 15*time.Second {
		t.Errorf("sync.probe_interval = %v, want 15s", cfg.Sync.ProbeInterval)
	}
	if cfg.Dashboard.Enabled {
		t.Error("dashboard should default to disabled")
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("dashboard.port = %d, want 8080", cfg.Dashboard.Port)
	}
	if cfg.DBPath == "" {
		t.Error("expected a default db_path")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
owner_id: owner-42
db_path: /tmp/ajanda-test/cache.db
remote:
  base_url: https://api.ajanda.test
  api_key: key-123
  token: tok-456
sync:
  interval: 90s
dashboard:
  enabled: true
  port: 9090
`
	if err := os.WriteFile(filepath.Join(dir, "ajsync.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OwnerID != "owner-42" {
		t.Errorf("owner_id = %q", cfg.OwnerID)
	}
	if cfg.Remote.BaseURL != "https://api.ajanda.test" {
		t.Errorf("remote.base_url = %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.APIKey != "key-123" || cfg.Remote.Token != "tok-456" {
		t.Errorf("remote credentials = %+v", cfg.Remote)
	}
	if cfg.Sync.Interval != 90*time.Second {
		t.Errorf("sync.interval = %v, want 90s", cfg.Sync.Interval)
	}
	if !cfg.Dashboard.Enabled || cfg.Dashboard.Port != 9090 {
		t.Errorf("dashboard = %+v", cfg.Dashboard)
	}
	// Unset keys keep their defaults.
	if cfg.Sync.ProbeInterval != 15*time.Second {
		t.Errorf("sync.probe_interval = %v, want default 15s", cfg.Sync.ProbeInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	chdirTemp(t)

	t.Setenv("AJSYNC_OWNER_ID", "owner-env")
	t.Setenv("AJSYNC_REMOTE_BASE_URL", "https://env.ajanda.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OwnerID != "owner-env" {
		t.Errorf("owner_id = %q, want env override", cfg.OwnerID)
	}
	if cfg.Remote.BaseURL != "https://env.ajanda.test" {
		t.Errorf("remote.base_url = %q, want env override", cfg.Remote.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing base_url")
	}

	cfg.Remote.BaseURL = "https://api.ajanda.test"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing owner_id")
	}

	cfg.OwnerID = "owner-1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
