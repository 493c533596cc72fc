// Package security holds TLS configuration for the registry listener and
// for outbound calls to remote registries, agents and the token authority.
//
//	listener, err := cfg.Server.TLS.Build()   // nil when serving plain HTTP
//	client, err := cfg.Discovery.TLS.Build()  // nil when using system roots
package security
