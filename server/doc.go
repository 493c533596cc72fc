// Package server hosts the registry HTTP API: a Gin engine on a ServeMux,
// served over h2c or TLS, with handler-level middleware from
// server/middleware (recovery, request id, request logging, CORS, body
// limit, rate limit, bearer extraction, HTTPS enforcement) and probe
// endpoints from server/endpoint (/livez, /readyz, /version).
package server
