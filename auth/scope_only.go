package auth

import (
	"context"
	"time"

	"github.com/kbukum/agentmesh/auth/jwt"
	apperrors "github.com/kbukum/agentmesh/errors"
)

// ScopeOnly mints tokens locally with the shared development secret. It
// refuses to run in production or when HTTPS is required.
type ScopeOnly struct {
	subject string
	ttl     time.Duration
	signer  *jwt.Signer
	opts    options
}

func newScopeOnly(cfg Config, o options) (*ScopeOnly, error) {
	kind := string(KindScopeOnly)
	if cfg.Production {
		return nil, apperrors.ProviderConfig(kind, "scope-only authentication is not allowed in production")
	}
	if cfg.RequireHTTPS {
		return nil, apperrors.ProviderConfig(kind, "scope-only authentication cannot be combined with require_https")
	}
	signer, err := jwt.NewSigner(jwt.SignerConfig{
		Secret:   cfg.DevSecret,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Now:      o.now,
	})
	if err != nil {
		return nil, apperrors.ProviderConfig(kind, err.Error())
	}

	subject := cfg.ClientID
	if subject == "" {
		subject = "local-developer"
	}
	o.log.Warn("scope-only authentication is active; tokens are minted locally")
	return &ScopeOnly{subject: subject, ttl: cfg.CacheTTL(), signer: signer, opts: o}, nil
}

func (p *ScopeOnly) Kind() ProviderKind { return KindScopeOnly }
func (p *ScopeOnly) Identity() string   { return p.subject }
func (p *ScopeOnly) sealed()            {}

// Acquire signs a token asserting scopes.
func (p *ScopeOnly) Acquire(_ context.Context, scopes []string) (*Credential, error) {
	token, exp, err := p.signer.Sign(p.subject, scopes, p.ttl)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &Credential{
		Token:     token,
		Scopes:    append([]string(nil), scopes...),
		IssuedAt:  p.opts.now(),
		ExpiresAt: exp,
		Provider:  KindScopeOnly,
	}, nil
}
