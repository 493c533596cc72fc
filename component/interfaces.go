package component

import "context"

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health holds health information for a component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a lifecycle-managed part of the registry process: the HTTP
// server, the health monitor, exporters.
type Component interface {
	// Name returns the unique name of the component.
	Name() string
	// Start starts the component. Long-running work must run in its own
	// goroutine so Start returns promptly.
	Start(ctx context.Context) error
	// Stop shuts the component down and releases resources.
	Stop(ctx context.Context) error
	// Health reports the current health of the component.
	Health(ctx context.Context) Health
}

// Overall folds component health into one status: unhealthy if any
// component is unhealthy, degraded if any is degraded, healthy otherwise.
func Overall(items []Health) HealthStatus {
	status := StatusHealthy
	for _, h := range items {
		switch h.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
