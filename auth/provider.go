package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/agentmesh/httpclient"
	"github.com/kbukum/agentmesh/logger"
)

// ProviderKind names a credential flow.
type ProviderKind string

const (
	KindClientCredentials ProviderKind = "client-credentials"
	KindManagedIdentity   ProviderKind = "managed-identity"
	KindInteractive       ProviderKind = "interactive"
	KindScopeOnly         ProviderKind = "scope-only"
)

var providerKinds = []ProviderKind{KindClientCredentials, KindManagedIdentity, KindInteractive, KindScopeOnly}

// Provider obtains access tokens. The set of implementations is closed;
// new flows are added in this package.
type Provider interface {
	Kind() ProviderKind
	// Identity names the principal the provider acts as. It never contains
	// secrets.
	Identity() string
	Acquire(ctx context.Context, scopes []string) (*Credential, error)

	sealed()
}

// Option customizes provider construction.
type Option func(*options)

type options struct {
	prompt func(DevicePrompt)
	log    *logger.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithPrompt sets where the interactive flow shows the user code.
func WithPrompt(fn func(DevicePrompt)) Option {
	return func(o *options) { o.prompt = fn }
}

// WithLogger sets the provider logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock overrides the time source and the poll delay.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// NewProvider builds the provider selected by cfg.ProviderType.
func NewProvider(cfg Config, opts ...Option) (Provider, error) {
	cfg.ApplyDefaults()

	o := options{now: time.Now, sleep: sleepCtx}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.GetGlobalLogger()
	}
	o.log = o.log.WithComponent("auth").WithFields(logger.Fields(logger.FieldProvider, string(cfg.ProviderType)))

	if cfg.ProviderType == KindScopeOnly {
		return newScopeOnly(cfg, o)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:   30 * time.Second,
		TLS:       cfg.TLS,
		UserAgent: "agentmesh-auth",
	})
	if err != nil {
		return nil, fmt.Errorf("auth: http client: %w", err)
	}

	switch cfg.ProviderType {
	case KindClientCredentials:
		return newClientCredentials(cfg, client, o), nil
	case KindManagedIdentity:
		return newManagedIdentity(cfg, client, o), nil
	case KindInteractive:
		p, err := newDeviceCode(cfg, client, o)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("auth: unknown provider_type %q", cfg.ProviderType)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
