package httpclient

import (
	"context"
	"net/http"
)

// TokenFunc returns a bearer token for an outbound request.
type TokenFunc func(ctx context.Context) (string, error)

// AuthConfig configures request authentication. Exactly one of Token or
// Source is used; Source wins when both are set.
type AuthConfig struct {
	Token  string
	Source TokenFunc
}

// BearerAuth sends a fixed bearer token.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Token: token}
}

// BearerSource asks fn for a token on every request.
func BearerSource(fn TokenFunc) *AuthConfig {
	return &AuthConfig{Source: fn}
}

func (a *AuthConfig) apply(ctx context.Context, req *http.Request) error {
	if a == nil {
		return nil
	}
	token := a.Token
	if a.Source != nil {
		t, err := a.Source(ctx)
		if err != nil {
			return err
		}
		token = t
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}
