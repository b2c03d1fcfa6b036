package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:5001" {
		t.Errorf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("expected mirror disabled by default, got %s", cfg.RedisAddr)
	}
	if cfg.PresenceTTL != 60*time.Second {
		t.Errorf("unexpected presence ttl: %s", cfg.PresenceTTL)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("unexpected log level: %s", cfg.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOCCOLLAB_HTTP_ADDRESS", "127.0.0.1:9999")
	t.Setenv("DOCCOLLAB_REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("DOCCOLLAB_PRESENCE_TTL", "30s")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddress != "127.0.0.1:9999" {
		t.Errorf("env override not applied: %s", cfg.HTTPAddress)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Errorf("env override not applied: %s", cfg.RedisAddr)
	}
	if cfg.PresenceTTL != 30*time.Second {
		t.Errorf("env override not applied: %s", cfg.PresenceTTL)
	}
}

func TestValidation(t *testing.T) {
	v := NewViper()
	v.Set("database.url", "")
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for empty database url")
	}

	v = NewViper()
	v.Set("presence.ttl", "0s")
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for zero presence ttl")
	}
}
