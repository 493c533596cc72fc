// Package httpclient is the outbound HTTP client used to query remote
// registries, probe agent health and reach the token authority.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL:        "https://registry.internal:8888",
//	    Auth:           httpclient.BearerSource(tokens.Token),
//	    Retry:          httpclient.DefaultRetryConfig(),
//	    CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("registry.internal"),
//	})
//	resp, err := httpclient.Get[AgentList](client, ctx, "/agents")
//
// Failures are classified into *Error values (timeout, connection, auth,
// not found, rate limit, server, circuit open).
package httpclient
