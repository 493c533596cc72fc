package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kbukum/agentmesh/auth/jwt"
	"github.com/kbukum/agentmesh/encryption"
	"github.com/kbukum/agentmesh/security"
)

// DefaultRequiredScope is the scope mutating registry calls must carry.
const DefaultRequiredScope = "agentic_ai_solution"

const (
	defaultAuthorityURL            = "https://login.microsoftonline.com"
	defaultManagedIdentityEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"
)

// Config holds authentication settings. Every key is reachable from the
// environment as AUTH_<KEY>, e.g. AUTH_PROVIDER_TYPE or AUTH_TOKEN_CACHE_TTL.
// Durations are whole seconds.
type Config struct {
	// Enabled turns on the registry gate.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// ProviderType selects the credential flow. Empty picks managed-identity
	// when UseManagedIdentity is set and client-credentials otherwise.
	ProviderType ProviderKind `yaml:"provider_type" mapstructure:"provider_type"`

	TenantID                string `yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID                string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret            string `yaml:"client_secret" mapstructure:"client_secret"`
	UseManagedIdentity      bool   `yaml:"use_managed_identity" mapstructure:"use_managed_identity"`
	ManagedIdentityClientID string `yaml:"managed_identity_client_id" mapstructure:"managed_identity_client_id"`
	ManagedIdentityEndpoint string `yaml:"managed_identity_endpoint" mapstructure:"managed_identity_endpoint"`
	AuthorityURL            string `yaml:"authority_url" mapstructure:"authority_url"`

	// RequiredScope is demanded of mutating requests and requested by the
	// outbound providers.
	RequiredScope string `yaml:"required_scope" mapstructure:"required_scope"`
	RequireHTTPS  bool   `yaml:"require_https" mapstructure:"require_https"`
	// GateReads extends the gate to read operations.
	GateReads bool `yaml:"gate_reads" mapstructure:"gate_reads"`

	TokenCacheTTL           int `yaml:"token_cache_ttl" mapstructure:"token_cache_ttl"`
	TokenRefreshThreshold   int `yaml:"token_refresh_threshold" mapstructure:"token_refresh_threshold"`
	AllowExpiredGracePeriod int `yaml:"allow_expired_grace_period" mapstructure:"allow_expired_grace_period"`

	// Validation. With a tenant, JWKSURL defaults to its key set, Issuer to
	// {authority}/{tenant}/v2.0 and Audience to ClientID. DevSecret is
	// shared between the scope-only provider and the validator.
	Issuer    string `yaml:"issuer" mapstructure:"issuer"`
	Audience  string `yaml:"audience" mapstructure:"audience"`
	JWKSURL   string `yaml:"jwks_url" mapstructure:"jwks_url"`
	DevSecret string `yaml:"dev_secret" mapstructure:"dev_secret"`

	// TokenFile, when set, keeps the interactive flow's credential across
	// runs, sealed with TokenFileKey.
	TokenFile       string `yaml:"token_file" mapstructure:"token_file"`
	TokenFileKey    string `yaml:"token_file_key" mapstructure:"token_file_key"`
	TokenFileCipher string `yaml:"token_file_cipher" mapstructure:"token_file_cipher"`

	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls"`

	// Production is copied from the service environment by the binary.
	Production bool `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.ProviderType == "" {
		if c.UseManagedIdentity {
			c.ProviderType = KindManagedIdentity
		} else {
			c.ProviderType = KindClientCredentials
		}
	}
	if c.AuthorityURL == "" {
		c.AuthorityURL = defaultAuthorityURL
	}
	c.AuthorityURL = strings.TrimRight(c.AuthorityURL, "/")
	if c.ManagedIdentityEndpoint == "" {
		c.ManagedIdentityEndpoint = defaultManagedIdentityEndpoint
	}
	if c.RequiredScope == "" {
		c.RequiredScope = DefaultRequiredScope
	}
	if c.TokenCacheTTL == 0 {
		c.TokenCacheTTL = 3600
	}
	if c.TokenRefreshThreshold == 0 {
		c.TokenRefreshThreshold = 300
	}
	if c.AllowExpiredGracePeriod == 0 {
		c.AllowExpiredGracePeriod = 60
	}
	if c.DevSecret == "" && c.TenantID != "" {
		// Signing keys are shared across tenants; issuer and audience are
		// what tie a token to this registry.
		if c.JWKSURL == "" {
			c.JWKSURL = fmt.Sprintf("%s/%s/discovery/v2.0/keys", c.AuthorityURL, c.TenantID)
		}
		if c.Issuer == "" {
			c.Issuer = fmt.Sprintf("%s/%s/v2.0", c.AuthorityURL, c.TenantID)
		}
		if c.Audience == "" {
			c.Audience = c.ClientID
		}
	}
}

// Validate checks the provider settings. Nothing is checked while disabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !slices.Contains(providerKinds, c.ProviderType) {
		return fmt.Errorf("auth: unknown provider_type %q", c.ProviderType)
	}
	switch c.ProviderType {
	case KindClientCredentials:
		if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("auth: client-credentials requires tenant_id, client_id and client_secret")
		}
	case KindInteractive:
		if c.TenantID == "" || c.ClientID == "" {
			return fmt.Errorf("auth: interactive requires tenant_id and client_id")
		}
	case KindScopeOnly:
		if c.DevSecret == "" {
			return fmt.Errorf("auth: scope-only requires dev_secret")
		}
	}
	if c.TokenCacheTTL < 0 || c.TokenRefreshThreshold < 0 || c.AllowExpiredGracePeriod < 0 {
		return fmt.Errorf("auth: durations must not be negative")
	}
	if c.JWKSURL == "" && c.DevSecret == "" {
		return fmt.Errorf("auth: token validation needs jwks_url, tenant_id or dev_secret")
	}
	if c.JWKSURL != "" && c.Issuer == "" && c.Audience == "" {
		return fmt.Errorf("auth: jwks_url requires issuer or audience")
	}
	if err := c.validateTokenFile(); err != nil {
		return err
	}
	return c.TLS.Validate()
}

func (c *Config) validateTokenFile() error {
	if c.TokenFile == "" {
		return nil
	}
	if c.TokenFileKey == "" {
		return fmt.Errorf("auth: token_file requires token_file_key")
	}
	_, err := encryption.ParseAlgorithm(c.TokenFileCipher)
	return err
}

// CacheTTL is the longest a credential is served from the cache.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.TokenCacheTTL) * time.Second
}

// RefreshFloor is the minimum remaining lifetime before a refresh.
func (c *Config) RefreshFloor() time.Duration {
	return time.Duration(c.TokenRefreshThreshold) * time.Second
}

// GracePeriod is the clock leeway granted to expired tokens.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.AllowExpiredGracePeriod) * time.Second
}

// ValidatorConfig derives the token validator settings.
func (c *Config) ValidatorConfig() jwt.Config {
	cfg := jwt.Config{
		Issuer:   c.Issuer,
		Audience: c.Audience,
		Leeway:   c.GracePeriod(),
		TLS:      c.TLS,
	}
	if c.JWKSURL != "" {
		cfg.JWKSURL = c.JWKSURL
	} else {
		cfg.Secret = c.DevSecret
	}
	return cfg
}

// Describe returns a one-liner for the startup log.
func (c *Config) Describe() string {
	if !c.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%s scope=%s https=%t gate_reads=%t", c.ProviderType, c.RequiredScope, c.RequireHTTPS, c.GateReads)
}
