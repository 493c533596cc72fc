package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/observability"
)

// RequestLogger logs each request with method, path, status and duration
// and records it on metrics. Probe paths are recorded but not logged.
func RequestLogger(log *logger.Logger, metrics *observability.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			duration := time.Since(start)

			metrics.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path), sw.status, duration)
			if isProbeEndpoint(r.URL.Path) {
				return
			}

			fields := map[string]interface{}{
				"method":             r.Method,
				"path":               r.URL.Path,
				logger.FieldStatus:   sw.status,
				logger.FieldDuration: duration.Milliseconds(),
				"client_ip":          clientIP(r),
			}
			logByStatus(log.WithContext(r.Context()), fields, sw.status)
		})
	}
}

// routeLabel keeps metric cardinality bounded: "/agents/calc/heartbeat"
// becomes "/agents/:id/heartbeat".
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "agents" {
		parts[1] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}

func isProbeEndpoint(path string) bool {
	switch path {
	case "/health", "/livez", "/readyz":
		return true
	}
	return false
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Debug("Request completed", fields)
	}
}
