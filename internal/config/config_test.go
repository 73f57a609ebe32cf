package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PIXELEDIT_API_ADDR",
		"PIXELEDIT_OUTPUT_DIR",
		"PIXELEDIT_HISTORY_CAPACITY",
		"PIXELEDIT_CANVAS_ENABLED",
		"POSTGRES_DSN",
		"OTEL_TRACES_EXPORTER",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.API.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.API.Addr)
	}
	if cfg.Editor.OutputDir != "flagged/output" {
		t.Fatalf("expected default output dir, got %q", cfg.Editor.OutputDir)
	}
	if cfg.Editor.HistoryCapacity != 10 {
		t.Fatalf("expected history capacity 10, got %d", cfg.Editor.HistoryCapacity)
	}
	if !cfg.Editor.CanvasEnabled {
		t.Fatal("expected canvas enabled by default")
	}
	if cfg.Database.DSN != "" {
		t.Fatalf("expected empty DSN, got %q", cfg.Database.DSN)
	}
	if cfg.Tracing.Exporter != "none" {
		t.Fatalf("expected tracing disabled, got %q", cfg.Tracing.Exporter)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PIXELEDIT_HISTORY_CAPACITY", "25")
	t.Setenv("PIXELEDIT_CANVAS_ENABLED", "false")
	t.Setenv("PIXELEDIT_SESSION_TTL", "15m")
	t.Setenv("PIXELEDIT_MAX_PIXELS", "1000000")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("OTEL_TRACES_SAMPLER_RATIO", "0.25")
	t.Setenv("REDIS_ADDR", "redis:6380")

	cfg := Load()
	if cfg.Editor.HistoryCapacity != 25 {
		t.Fatalf("expected capacity 25, got %d", cfg.Editor.HistoryCapacity)
	}
	if cfg.Editor.CanvasEnabled {
		t.Fatal("expected canvas disabled")
	}
	if cfg.Editor.SessionTTL != 15*time.Minute {
		t.Fatalf("expected 15m ttl, got %s", cfg.Editor.SessionTTL)
	}
	if cfg.Editor.MaxPixels != 1_000_000 {
		t.Fatalf("expected max pixels 1000000, got %d", cfg.Editor.MaxPixels)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("expected 30s window, got %s", cfg.RateLimit.Window)
	}
	if cfg.Tracing.SampleRatio != 0.25 {
		t.Fatalf("expected ratio 0.25, got %v", cfg.Tracing.SampleRatio)
	}
	if cfg.Queue.RedisClientOpt().Addr != "redis:6380" || cfg.Queue.RedisOptions().Addr != "redis:6380" {
		t.Fatal("expected redis options to follow REDIS_ADDR")
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("PIXELEDIT_HISTORY_CAPACITY", "many")
	t.Setenv("PIXELEDIT_CANVAS_ENABLED", "perhaps")
	t.Setenv("PIXELEDIT_SESSION_TTL", "soon")

	cfg := Load()
	if cfg.Editor.HistoryCapacity != 10 || !cfg.Editor.CanvasEnabled || cfg.Editor.SessionTTL != 2*time.Hour {
		t.Fatalf("expected defaults for malformed values, got %+v", cfg.Editor)
	}
}
