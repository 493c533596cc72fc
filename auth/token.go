package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/httpclient"
)

// tokenResponse covers the OAuth token endpoint and the metadata service.
type tokenResponse struct {
	AccessToken      string  `json:"access_token"`
	TokenType        string  `json:"token_type"`
	ExpiresIn        seconds `json:"expires_in"`
	Scope            string  `json:"scope"`
	Error            string  `json:"error"`
	ErrorDescription string  `json:"error_description"`
}

func (r *tokenResponse) describe() string {
	if r.ErrorDescription != "" {
		return r.Error + ": " + r.ErrorDescription
	}
	return r.Error
}

func (r *tokenResponse) credential(kind ProviderKind, requested []string, now time.Time) (*Credential, error) {
	if r.AccessToken == "" {
		return nil, apperrors.AuthFailure(string(kind), "token response carries no access_token")
	}
	lifetime := time.Duration(r.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	granted := strings.Fields(r.Scope)
	if len(granted) == 0 {
		granted = append([]string(nil), requested...)
	}
	return &Credential{
		Token:     r.AccessToken,
		Scopes:    granted,
		IssuedAt:  now,
		ExpiresAt: now.Add(lifetime),
		Provider:  kind,
	}, nil
}

// seconds accepts expires_in as a JSON number or a numeric string.
type seconds int64

func (s *seconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*s = seconds(n)
	return nil
}

// postForm sends form to endpoint and decodes the answer.
func postForm(ctx context.Context, client *httpclient.Client, kind ProviderKind, endpoint string, form url.Values) (*tokenResponse, error) {
	return exchange(ctx, client, kind, httpclient.Request{
		Method:  http.MethodPost,
		Path:    endpoint,
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    form.Encode(),
	})
}

// exchange performs req against an identity endpoint. Transport failures,
// throttling and 5xx map to AuthUnavailable; an undecodable body or a bare
// non-2xx maps to AuthFailure. OAuth error answers are returned decoded so
// callers can inspect the error field.
func exchange(ctx context.Context, client *httpclient.Client, kind ProviderKind, req httpclient.Request) (*tokenResponse, error) {
	resp, err := client.Do(ctx, req)
	if resp == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.AuthUnavailable(string(kind), err)
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperrors.AuthUnavailable(string(kind), err)
	}

	var tr tokenResponse
	if jsonErr := json.Unmarshal(resp.Body, &tr); jsonErr != nil {
		return nil, apperrors.AuthFailure(string(kind), "malformed token response").WithCause(jsonErr)
	}
	if err != nil && tr.Error == "" {
		return nil, apperrors.AuthFailure(string(kind), fmt.Sprintf("identity endpoint answered HTTP %d", resp.StatusCode)).WithCause(err)
	}
	return &tr, nil
}
