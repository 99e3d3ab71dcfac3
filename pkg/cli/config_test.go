package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "krama.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("APPDATA", "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig with no file failed: %v", err)
	}
	if cfg != (Config{}) {
		t.Errorf("no config file should yield the zero Config, got %+v", cfg)
	}
}

func TestLoadConfigReadsYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
store: redis
dsn: redis://localhost:6379/0
history_path: /var/lib/krama/history.db
warn_uncacheable: true
plain: true
`)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("APPDATA", "")
	t.Setenv("HOME", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Store != "redis" {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.DSN != "redis://localhost:6379/0" {
		t.Errorf("DSN = %q", cfg.DSN)
	}
	if cfg.HistoryPath != "/var/lib/krama/history.db" {
		t.Errorf("HistoryPath = %q", cfg.HistoryPath)
	}
	if !cfg.WarnUncacheable || !cfg.Plain {
		t.Errorf("bool fields not read: %+v", cfg)
	}
}

func TestLoadConfigPrefersXDGOverHome(t *testing.T) {
	xdg := t.TempDir()
	home := t.TempDir()
	writeConfig(t, xdg, "store: memory\n")
	writeConfig(t, home, "store: fs\n")
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("APPDATA", "")
	t.Setenv("HOME", home)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Store != "memory" {
		t.Errorf("Store = %q, want the XDG value", cfg.Store)
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "store: [unclosed\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("APPDATA", "")
	t.Setenv("HOME", "")

	if _, err := LoadConfig(); err == nil {
		t.Error("malformed yaml accepted")
	}
}
