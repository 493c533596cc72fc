// Package jwt validates bearer tokens presented to the registry and mints
// development tokens for the scope-only provider.
//
// A Validator trusts exactly one key source. Issuer key sets are fetched
// over HTTPS, cached for JWKSCacheTTL and refetched when an unknown key id
// shows up, at most once a minute.
//
//	v, err := jwt.NewValidator(jwt.Config{
//	    JWKSURL:  "https://login.example.com/tenant/discovery/v2.0/keys",
//	    Issuer:   "https://login.example.com/tenant/v2.0",
//	    Audience: "api://agent-registry",
//	})
//	claims, err := v.Validate(ctx, token, "agentic_ai_solution")
package jwt
