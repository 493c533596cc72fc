// Package resilience provides the fault-tolerance primitives used by the
// authentication and discovery clients.
//
//   - Retry: exponential backoff for token acquisition
//   - CircuitBreaker: fail fast against a registry that keeps erroring
//   - Bulkhead / FanOut: bounded concurrency for discovery fan-out and probes
//   - KeyedRateLimiter: per-client token buckets for the registry API
//
// Combined, a discovery query looks like:
//
//	err := bh.Execute(ctx, func() error {
//	    return cb.Execute(func() error { return source.Get(ctx, id) })
//	})
package resilience
