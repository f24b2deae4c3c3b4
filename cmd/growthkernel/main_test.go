package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/clawinfra/growthkernel/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLoadConfigDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growthkernel.yaml")
	logger := slog.Default()

	cfg, err := loadConfig(path, logger)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("expected config file to be created")
	}
}

func TestLoadConfigExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growthkernel.yaml")
	logger := slog.Default()

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := loadConfig(path, logger)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected non-nil config")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growthkernel.yaml")

	os.WriteFile(path, []byte(":\n  - not: [valid"), 0644)
	if _, err := loadConfig(path, slog.Default()); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSetupWiresDeps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growthkernel.yaml")

	cfg := config.DefaultConfig()
	cfg.Server.DataDir = filepath.Join(dir, "data")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	app, err := setup(path)
	if err != nil {
		t.Fatalf("setup() error: %v", err)
	}
	defer app.Deps.Close()

	if app.Deps == nil || app.Deps.Orchestrator == nil || app.Deps.Scheduler == nil {
		t.Fatal("expected setup to wire every component via deps.RegisterAll")
	}
}
