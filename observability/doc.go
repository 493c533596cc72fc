// Package observability wires OpenTelemetry tracing and metrics.
//
// Export runs over OTLP HTTP and is off unless Config.Enabled is set.
// Instruments are always created against the global meter, which is a
// no-op until a provider is installed:
//
//	metrics, err := observability.NewMetrics(observability.Meter("agent-registry"))
//	metrics.RecordLifecycle(ctx, "register", "ok")
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanDiscoverAgent)
//	defer observability.EndSpan(span, err)
package observability
