// Package auth obtains and caches outbound access tokens and defines the
// contract the registry gate uses to check inbound ones.
//
// Four providers cover the supported flows:
//
//   - client-credentials: application secret exchanged at the tenant's token endpoint
//   - managed-identity: token from the host metadata service
//   - interactive: OAuth device code flow with a user prompt
//   - scope-only: locally minted HS256 token for development
//
// Tokens are served through a TokenCache:
//
//	provider, err := auth.NewProvider(cfg)
//	cache := auth.NewTokenCache(auth.CacheConfigFrom(&cfg))
//	cred, err := cache.Acquire(ctx, provider, []string{cfg.RequiredScope})
//
// Subpackages:
//
//   - auth/jwt: token validation and development token signing
//   - auth/authctx: bearer token and claims propagation through context
//   - auth/inspect: unverified token decoding for debugging
package auth
