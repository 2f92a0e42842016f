package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"classpulse/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

func TestNewApplication(t *testing.T) {
	app, err := NewApplication(testConfig(t))
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}

	if app.dbManager == nil || app.sessionManager == nil || app.engagementHub == nil {
		t.Error("application components not wired")
	}
	if app.httpServer == nil || app.apiServer == nil {
		t.Error("HTTP surface not wired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Port = -1

	if _, err := NewApplication(cfg); err == nil {
		t.Error("expected error for invalid configuration")
	}
}

func TestNewApplication_NilConfigUsesDefaults(t *testing.T) {
	// Defaults point the database at the working directory; redirect it
	// through the environment-independent constructor path instead.
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "default.db")

	app, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if app.config.HTTP.Port != 8080 {
		t.Errorf("port = %d, want default 8080", app.config.HTTP.Port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.Stop(ctx)
}

func TestNewApplication_WithWeightsFile(t *testing.T) {
	cfg := testConfig(t)
	weights := filepath.Join(t.TempDir(), "weights.yaml")
	writeWeights(t, weights)
	cfg.Scoring.WeightsPath = weights

	app, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if app.weightsWatcher == nil {
		t.Error("weights watcher not started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.Stop(ctx)
}

func writeWeights(t *testing.T, path string) {
	t.Helper()
	content := `weights:
  neutral:
    engaged: 0.45
    bored: 0.30
    confused: 0.10
    not_paying_attention: 0.15
  happy:
    engaged: 0.85
    bored: 0.03
    confused: 0.05
    not_paying_attention: 0.07
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
}
