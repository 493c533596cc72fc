package auth

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/httpclient"
)

const managedIdentityAPIVersion = "2018-02-01"

// ManagedIdentity asks the host's metadata service for a token. A client
// id selects a user-assigned identity; without one the system identity is
// used.
type ManagedIdentity struct {
	endpoint string
	clientID string
	client   *httpclient.Client
	opts     options
}

func newManagedIdentity(cfg Config, client *httpclient.Client, o options) *ManagedIdentity {
	return &ManagedIdentity{
		endpoint: cfg.ManagedIdentityEndpoint,
		clientID: cfg.ManagedIdentityClientID,
		client:   client,
		opts:     o,
	}
}

func (p *ManagedIdentity) Kind() ProviderKind { return KindManagedIdentity }
func (p *ManagedIdentity) sealed()            {}

func (p *ManagedIdentity) Identity() string {
	if p.clientID == "" {
		return "system-assigned"
	}
	return p.clientID
}

// Acquire requests a token for the resource behind the first scope.
func (p *ManagedIdentity) Acquire(ctx context.Context, scopes []string) (*Credential, error) {
	query := map[string]string{
		"api-version": managedIdentityAPIVersion,
		"resource":    resourceFor(scopes),
	}
	if p.clientID != "" {
		query["client_id"] = p.clientID
	}

	tr, err := exchange(ctx, p.client, p.Kind(), httpclient.Request{
		Method:  http.MethodGet,
		Path:    p.endpoint,
		Headers: map[string]string{"Metadata": "true"},
		Query:   query,
	})
	if err != nil {
		return nil, err
	}
	if tr.Error != "" {
		return nil, apperrors.AuthFailure(string(p.Kind()), tr.describe())
	}
	return tr.credential(p.Kind(), scopes, p.opts.now())
}

// resourceFor converts a v2 scope such as "api://x/.default" to the v1
// resource the metadata service expects.
func resourceFor(scopes []string) string {
	if len(scopes) == 0 {
		return ""
	}
	return strings.TrimSuffix(scopes[0], "/.default")
}
