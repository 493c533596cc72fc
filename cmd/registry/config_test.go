package main

import (
	"path/filepath"
	"testing"

	"github.com/kbukum/agentmesh/config"
)

func isolated(t *testing.T) []config.LoaderOption {
	t.Helper()
	dir := t.TempDir()
	return []config.LoaderOption{
		config.WithConfigFile(filepath.Join(dir, "config.yml")),
		config.WithEnvFile(filepath.Join(dir, ".env")),
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(isolated(t)...)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	if cfg.Name != serviceName {
		t.Errorf("expected name %q, got %q", serviceName, cfg.Name)
	}
	if cfg.Server.Port != 8888 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("unexpected listener %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Registry.HeartbeatInterval != 60 || cfg.Registry.StaleThreshold != 300 || cfg.Registry.RemovalThreshold != 600 {
		t.Errorf("unexpected registry defaults %+v", cfg.Registry)
	}
	if cfg.Auth.Enabled {
		t.Error("auth should be disabled by default")
	}
	if cfg.Auth.RequiredScope != "agentic_ai_solution" {
		t.Errorf("unexpected default scope %q", cfg.Auth.RequiredScope)
	}
}

func TestLoadConfigEnvAliases(t *testing.T) {
	t.Setenv("REGISTRY_HOST", "127.0.0.1")
	t.Setenv("REGISTRY_PORT", "9999")
	t.Setenv("HEARTBEAT_INTERVAL", "10")
	t.Setenv("STALE_THRESHOLD", "45")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("AUTH_PROVIDER_TYPE", "scope-only")
	t.Setenv("AUTH_DEV_SECRET", "local-dev-secret-0123456789abcdef")
	t.Setenv("AUTH_REQUIRE_HTTPS", "true")

	cfg, err := loadConfig(isolated(t)...)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9999 {
		t.Errorf("unexpected listener %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Registry.HeartbeatInterval != 10 || cfg.Registry.StaleThreshold != 45 {
		t.Errorf("unexpected registry config %+v", cfg.Registry)
	}
	if cfg.Registry.RemovalThreshold != 90 {
		t.Errorf("removal threshold should follow the stale threshold, got %d", cfg.Registry.RemovalThreshold)
	}
	if !cfg.Auth.Enabled || !cfg.Auth.RequireHTTPS || cfg.Auth.ProviderType != "scope-only" {
		t.Errorf("unexpected auth config %+v", cfg.Auth)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	t.Setenv("STALE_THRESHOLD", "100")
	t.Setenv("REMOVAL_THRESHOLD", "50")

	cfg, err := loadConfig(isolated(t)...)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected removal below stale to be rejected")
	}
}
