// Package inspect decodes bearer tokens without verifying them. It exists
// for operators debugging a rejected token and must never gate access.
package inspect

import (
	"fmt"
	"slices"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/agentmesh/util"
)

// Summary is the unverified content of a token.
type Summary struct {
	Token     string         `json:"token"`
	Algorithm string         `json:"alg"`
	KeyID     string         `json:"kid,omitempty"`
	Subject   string         `json:"sub,omitempty"`
	Issuer    string         `json:"iss,omitempty"`
	Audience  []string       `json:"aud,omitempty"`
	Scopes    []string       `json:"scopes,omitempty"`
	IssuedAt  time.Time      `json:"iat,omitzero"`
	ExpiresAt time.Time      `json:"exp,omitzero"`
	Expired   bool           `json:"expired"`
	Claims    map[string]any `json:"claims"`
}

// Decode parses raw without checking its signature. The returned token is
// masked so the summary can be logged.
func Decode(raw string, now time.Time) (*Summary, error) {
	claims := gojwt.MapClaims{}
	tok, _, err := gojwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return nil, fmt.Errorf("inspect: %w", err)
	}

	s := &Summary{
		Token:  util.MaskSecret(raw, 12),
		Claims: claims,
	}
	s.Algorithm, _ = tok.Header["alg"].(string)
	s.KeyID, _ = tok.Header["kid"].(string)
	s.Subject, _ = claims.GetSubject()
	s.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		s.Audience = aud
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		s.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
		s.Expired = now.After(exp.Time)
	}
	for _, key := range []string{"scp", "scope", "roles"} {
		for _, scope := range scopeValues(claims[key]) {
			if !slices.Contains(s.Scopes, scope) {
				s.Scopes = append(s.Scopes, scope)
			}
		}
	}
	return s, nil
}

func scopeValues(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Fields(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
