package registry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/agentmesh/component"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/testutil"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.HeartbeatInterval != 60 || cfg.StaleThreshold != 300 || cfg.RemovalThreshold != 600 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	derived := Config{StaleThreshold: 30}
	derived.ApplyDefaults()
	if derived.RemovalThreshold != 60 {
		t.Errorf("removal threshold should default to twice stale, got %d", derived.RemovalThreshold)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative interval", Config{HeartbeatInterval: -1, StaleThreshold: 30, RemovalThreshold: 60}},
		{"negative stale", Config{HeartbeatInterval: 10, StaleThreshold: -5, RemovalThreshold: 60}},
		{"removal not after stale", Config{HeartbeatInterval: 10, StaleThreshold: 30, RemovalThreshold: 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMonitorSweepNow(t *testing.T) {
	clock := testutil.NewClock()
	store := newTestStore(clock)
	ctx := context.Background()
	_, _ = store.Register(ctx, "calc", card("Calculator", "add"), "http://localhost:9001")
	_, _ = store.Register(ctx, "tr", card("Translator", "translate"), "http://localhost:9002")

	m := NewMonitor(store, Config{HeartbeatInterval: 1, StaleThreshold: 30, RemovalThreshold: 60}, logger.Nop())

	clock.Advance(45 * time.Second)
	_, _ = store.Heartbeat(ctx, "tr")
	if res := m.SweepNow(ctx); res.Stale != 1 || res.Removed != 0 {
		t.Fatalf("unexpected first sweep %+v", res)
	}

	clock.Advance(20 * time.Second)
	if res := m.SweepNow(ctx); res.Removed != 1 {
		t.Fatalf("unexpected second sweep %+v", res)
	}
	if _, err := store.Get(ctx, "calc"); err == nil {
		t.Error("calc should have been removed")
	}
	if _, err := store.Get(ctx, "tr"); err != nil {
		t.Errorf("tr heartbeated and should survive: %v", err)
	}

	want := clock.Now().UTC().Format(time.RFC3339)
	if h := m.Health(ctx); !strings.Contains(h.Message, "last sweep "+want) {
		t.Errorf("health should report the sweep on the store clock (%s), got %q", want, h.Message)
	}
}

func TestMonitorLifecycle(t *testing.T) {
	store := NewStore(WithLogger(logger.Nop()))
	m := NewMonitor(store, Config{HeartbeatInterval: 1, StaleThreshold: 30, RemovalThreshold: 60}, logger.Nop())
	m.interval = 10 * time.Millisecond
	ctx := context.Background()

	if h := m.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("stopped monitor should report unhealthy, got %s", h.Status)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		m.mu.Lock()
		sweeps := m.sweeps
		m.mu.Unlock()
		if sweeps > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitor never swept")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if h := m.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy monitor, got %+v", h)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := m.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(stopCtx); err != nil {
		t.Errorf("second Stop should be a no-op: %v", err)
	}
	if h := m.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy after stop, got %s", h.Status)
	}
}
