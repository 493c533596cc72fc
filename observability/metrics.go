package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the registry and discovery instruments. A nil *Metrics
// records nothing, so callers never need to guard.
type Metrics struct {
	lifecycle     metric.Int64Counter
	evictions     metric.Int64Counter
	authFailures  metric.Int64Counter
	tokenRequests metric.Int64Counter
	discovery     metric.Float64Histogram
	httpDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	lifecycle, err := meter.Int64Counter("agent_lifecycle_events_total",
		metric.WithDescription("Agent register, heartbeat and unregister calls by outcome"))
	if err != nil {
		return nil, err
	}
	evictions, err := meter.Int64Counter("agent_health_transitions_total",
		metric.WithDescription("Agents marked stale or removed by the health monitor"))
	if err != nil {
		return nil, err
	}
	authFailures, err := meter.Int64Counter("auth_failures_total",
		metric.WithDescription("Rejected requests by error code"))
	if err != nil {
		return nil, err
	}
	tokenRequests, err := meter.Int64Counter("auth_token_requests_total",
		metric.WithDescription("Token acquisitions by provider and cache result"))
	if err != nil {
		return nil, err
	}
	discovery, err := meter.Float64Histogram("discovery_query_duration_seconds",
		metric.WithDescription("Duration of registry queries by source and outcome"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	httpDuration, err := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration by route and status"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		lifecycle:     lifecycle,
		evictions:     evictions,
		authFailures:  authFailures,
		tokenRequests: tokenRequests,
		discovery:     discovery,
		httpDuration:  httpDuration,
	}, nil
}

// RecordLifecycle counts a register, heartbeat or unregister call.
func (m *Metrics) RecordLifecycle(ctx context.Context, op, outcome string) {
	if m == nil {
		return
	}
	m.lifecycle.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// RecordHealthTransition counts agents moved to state by the monitor.
func (m *Metrics) RecordHealthTransition(ctx context.Context, state string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.evictions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("state", state)))
}

// RecordAuthFailure counts a rejected request.
func (m *Metrics) RecordAuthFailure(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.authFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordTokenRequest counts a token acquisition.
func (m *Metrics) RecordTokenRequest(ctx context.Context, provider string, cacheHit bool, err error) {
	if m == nil {
		return
	}
	m.tokenRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("cache_hit", cacheHit),
		attribute.String("outcome", outcome(err)),
	))
}

// RecordDiscoveryQuery records one registry query.
func (m *Metrics) RecordDiscoveryQuery(ctx context.Context, source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.discovery.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome(err)),
	))
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
