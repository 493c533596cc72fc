// Package bootstrap wires a service's config, logger and components into a
// single lifecycle with graceful shutdown on SIGINT/SIGTERM.
package bootstrap
