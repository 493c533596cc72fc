package auth

import (
	"slices"
	"strings"
	"time"
)

// Credential is an access token obtained from a Provider.
type Credential struct {
	Token     string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Provider  ProviderKind
}

// HasScope reports whether scope was granted.
func (c *Credential) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ScopeString returns the scopes in OAuth's space-delimited form.
func (c *Credential) ScopeString() string {
	return strings.Join(c.Scopes, " ")
}

// Expired reports whether the token is past its expiry at now.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Lifetime is the validity window the issuer granted.
func (c *Credential) Lifetime() time.Duration {
	return c.ExpiresAt.Sub(c.IssuedAt)
}

func (c *Credential) clone() *Credential {
	cp := *c
	cp.Scopes = slices.Clone(c.Scopes)
	return &cp
}
