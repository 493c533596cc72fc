package jwt

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims is the validated identity carried by a bearer token.
type Claims struct {
	PrincipalID   string    `json:"principal_id"`
	PrincipalName string    `json:"principal_name,omitempty"`
	Scopes        []string  `json:"scopes"`
	Issuer        string    `json:"issuer,omitempty"`
	Audience      []string  `json:"audience,omitempty"`
	IssuedAt      time.Time `json:"issued_at,omitzero"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
}

// HasScope reports whether the token grants scope. An empty scope is
// always granted.
func (c *Claims) HasScope(scope string) bool {
	if scope == "" {
		return true
	}
	return slices.Contains(c.Scopes, scope)
}

// tokenClaims is the wire shape accepted from identity providers.
type tokenClaims struct {
	gojwt.RegisteredClaims
	Scp               scopeList `json:"scp,omitempty"`
	Scope             scopeList `json:"scope,omitempty"`
	Roles             []string  `json:"roles,omitempty"`
	OID               string    `json:"oid,omitempty"`
	UniqueName        string    `json:"unique_name,omitempty"`
	UPN               string    `json:"upn,omitempty"`
	PreferredUsername string    `json:"preferred_username,omitempty"`
	Name              string    `json:"name,omitempty"`
}

func (t *tokenClaims) toClaims() *Claims {
	c := &Claims{
		PrincipalID:   firstNonEmpty(t.Subject, t.OID),
		PrincipalName: firstNonEmpty(t.UniqueName, t.UPN, t.PreferredUsername, t.Name),
		Scopes:        t.scopes(),
		Issuer:        t.Issuer,
		Audience:      t.Audience,
	}
	if t.IssuedAt != nil {
		c.IssuedAt = t.IssuedAt.Time
	}
	if t.ExpiresAt != nil {
		c.ExpiresAt = t.ExpiresAt.Time
	}
	return c
}

// scopes merges scp, scope and roles without duplicates, in that order.
func (t *tokenClaims) scopes() []string {
	var out []string
	for _, group := range [][]string{t.Scp, t.Scope, t.Roles} {
		for _, s := range group {
			if s != "" && !slices.Contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

// scopeList decodes either a space-delimited string or a JSON array.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = strings.Fields(single)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

// MarshalJSON writes the space-delimited form used by OAuth servers.
func (s scopeList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(s, " "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
