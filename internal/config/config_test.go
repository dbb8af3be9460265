package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPPort != "3000" {
		t.Errorf("expected default port 3000, got %q", cfg.HTTPPort)
	}
	if cfg.AttendanceZone != "Asia/Kolkata" {
		t.Errorf("expected default zone Asia/Kolkata, got %q", cfg.AttendanceZone)
	}
	if len(cfg.EmbedderCommand) == 0 {
		t.Fatal("expected a default embedder command")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("EMBEDDER_COMMAND", "python3 /opt/embedder/createEmbeddings.py")
	t.Setenv("EMBED_WORKERS", "4")
	t.Setenv("QUEUE_BACKEND", "redis")

	cfg := Load()
	if cfg.HTTPPort != "8088" {
		t.Errorf("HTTP_PORT override not applied, got %q", cfg.HTTPPort)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SESSION_TTL override not applied, got %s", cfg.SessionTTL)
	}
	want := []string{"python3", "/opt/embedder/createEmbeddings.py"}
	if len(cfg.EmbedderCommand) != len(want) || cfg.EmbedderCommand[0] != want[0] || cfg.EmbedderCommand[1] != want[1] {
		t.Errorf("EMBEDDER_COMMAND override not applied, got %v", cfg.EmbedderCommand)
	}
	if cfg.EmbedWorkers != 4 {
		t.Errorf("EMBED_WORKERS override not applied, got %d", cfg.EmbedWorkers)
	}
	if cfg.QueueBackend != "redis" {
		t.Errorf("QUEUE_BACKEND override not applied, got %q", cfg.QueueBackend)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("EMBED_WORKERS", "many")

	cfg := Load()
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("expected fallback session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.EmbedWorkers != 1 {
		t.Errorf("expected fallback worker count, got %d", cfg.EmbedWorkers)
	}
}
