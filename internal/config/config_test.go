package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.CacheSize != 128 {
		t.Errorf("CacheSize = %d, want 128", cfg.CacheSize)
	}
	if cfg.MaxCells != 200000 {
		t.Errorf("MaxCells = %d, want 200000", cfg.MaxCells)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hexmesh.yaml")
	body := "addr: \":9090\"\nlog_level: debug\nlog_console: true\ncache_size: 16\nmax_cells: 1000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.LogConsole {
		t.Error("LogConsole = false, want true")
	}
	if cfg.CacheSize != 16 {
		t.Errorf("CacheSize = %d, want 16", cfg.CacheSize)
	}
	if cfg.MaxCells != 1000 {
		t.Errorf("MaxCells = %d, want 1000", cfg.MaxCells)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HEXMESH_MAX_CELLS", "5000")
	t.Setenv("HEXMESH_ADDR", ":7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxCells != 5000 {
		t.Errorf("MaxCells = %d, want 5000 from env", cfg.MaxCells)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("Addr = %q, want :7070 from env", cfg.Addr)
	}
}

func TestNonPositiveSizesClamped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hexmesh.yaml")
	if err := os.WriteFile(path, []byte("cache_size: -1\nmax_cells: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheSize != 128 || cfg.MaxCells != 200000 {
		t.Errorf("clamp failed: cache=%d cells=%d", cfg.CacheSize, cfg.MaxCells)
	}
}
