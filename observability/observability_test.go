package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/agentmesh/component"
	"github.com/kbukum/agentmesh/logger"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("unexpected sample rate %v", cfg.SampleRate)
	}
	if cfg.Interval() != 15*time.Second {
		t.Errorf("unexpected interval %v", cfg.Interval())
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{SampleRate: 1.5}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for sample rate above 1")
	}
	cfg.SampleRate = 0.25
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewMetricsNoop(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	ctx := context.Background()
	m.RecordLifecycle(ctx, "register", "ok")
	m.RecordHealthTransition(ctx, "stale", 2)
	m.RecordAuthFailure(ctx, "INVALID_TOKEN")
	m.RecordTokenRequest(ctx, "client_credentials", true, nil)
	m.RecordDiscoveryQuery(ctx, "http://registry-a", time.Millisecond, errors.New("down"))
	m.RecordHTTPRequest(ctx, "GET", "/agents", 200, time.Millisecond)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordLifecycle(ctx, "heartbeat", "not_found")
	m.RecordHealthTransition(ctx, "removed", 1)
	m.RecordAuthFailure(ctx, "TOKEN_EXPIRED")
	m.RecordTokenRequest(ctx, "device_code", false, nil)
	m.RecordDiscoveryQuery(ctx, "local", 0, nil)
	m.RecordHTTPRequest(ctx, "POST", "/register", 201, 0)
}

func TestMetricsAreCollected(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	ctx := context.Background()
	m.RecordLifecycle(ctx, "register", "ok")
	m.RecordLifecycle(ctx, "register", "ok")
	m.RecordHealthTransition(ctx, "removed", 3)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if s, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	if sums["agent_lifecycle_events_total"] != 2 {
		t.Errorf("expected 2 lifecycle events, got %d", sums["agent_lifecycle_events_total"])
	}
	if sums["agent_health_transitions_total"] != 3 {
		t.Errorf("expected 3 transitions, got %d", sums["agent_health_transitions_total"])
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"always", 1.0, "AlwaysOnSampler"},
		{"never", 0, "AlwaysOffSampler"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sampler(tc.rate).Description(); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestStartSpanAndEndSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanDiscoverAgent)
	if span == nil {
		t.Fatal("expected span")
	}
	EndSpan(span, errors.New("boom"))
	if TraceID(context.Background()) != "" {
		t.Error("expected empty trace id without a span")
	}
	_ = ctx
}

func TestInitTracerAndMeter(t *testing.T) {
	cfg := Config{Endpoint: "localhost:4318", Insecure: true}
	cfg.ApplyDefaults()
	res := Resource{ServiceName: "agent-registry", ServiceVersion: "1.0.0", Environment: "test"}

	tp, err := InitTracer(context.Background(), cfg, res)
	if err != nil {
		t.Fatalf("InitTracer failed: %v", err)
	}
	_ = tp.Shutdown(context.Background())

	mp, err := InitMeter(context.Background(), cfg, res)
	if err != nil {
		t.Fatalf("InitMeter failed: %v", err)
	}
	_ = mp.Shutdown(context.Background())
}

func TestComponentDisabled(t *testing.T) {
	c := NewComponent(Config{}, Resource{ServiceName: "agent-registry"}, logger.Nop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h := c.Health(context.Background())
	if h.Status != component.StatusHealthy || h.Message != "export disabled" {
		t.Errorf("unexpected health %+v", h)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
