package auth

import (
	"context"
	"net/url"
	"strings"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/httpclient"
)

// ClientCredentials exchanges an application secret for a token.
type ClientCredentials struct {
	tokenURL string
	tenant   string
	clientID string
	secret   string
	client   *httpclient.Client
	opts     options
}

func newClientCredentials(cfg Config, client *httpclient.Client, o options) *ClientCredentials {
	return &ClientCredentials{
		tokenURL: tokenEndpoint(cfg.AuthorityURL, cfg.TenantID),
		tenant:   cfg.TenantID,
		clientID: cfg.ClientID,
		secret:   cfg.ClientSecret,
		client:   client,
		opts:     o,
	}
}

func (p *ClientCredentials) Kind() ProviderKind { return KindClientCredentials }
func (p *ClientCredentials) Identity() string   { return p.tenant + "/" + p.clientID }
func (p *ClientCredentials) sealed()            {}

// Acquire requests a token for scopes.
func (p *ClientCredentials) Acquire(ctx context.Context, scopes []string) (*Credential, error) {
	tr, err := postForm(ctx, p.client, p.Kind(), p.tokenURL, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {p.clientID},
		"client_secret": {p.secret},
		"scope":         {strings.Join(scopes, " ")},
	})
	if err != nil {
		return nil, err
	}
	if tr.Error != "" {
		return nil, apperrors.AuthFailure(string(p.Kind()), tr.describe())
	}
	return tr.credential(p.Kind(), scopes, p.opts.now())
}

func tokenEndpoint(authority, tenant string) string {
	return authority + "/" + tenant + "/oauth2/v2.0/token"
}
