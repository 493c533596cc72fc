package jwt

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/agentmesh/security"
)

// SigningMethod defines supported JWT signing algorithms.
type SigningMethod string

const (
	HS256 SigningMethod = "HS256"
	HS384 SigningMethod = "HS384"
	HS512 SigningMethod = "HS512"
	RS256 SigningMethod = "RS256"
	RS384 SigningMethod = "RS384"
	RS512 SigningMethod = "RS512"
	ES256 SigningMethod = "ES256"
	ES384 SigningMethod = "ES384"
	ES512 SigningMethod = "ES512"
)

// Config configures token validation. Exactly one key source is used, in
// order of precedence: JWKSURL, PublicKey, Secret.
type Config struct {
	// Secret is the HMAC key shared with the scope-only provider.
	Secret string `mapstructure:"secret"`

	// PublicKey is a static RSA or ECDSA verification key.
	PublicKey interface{} `mapstructure:"-"`

	// JWKSURL is the issuer's key set endpoint.
	JWKSURL string `mapstructure:"jwks_url"`

	// JWKSCacheTTL controls how long fetched keys are trusted (default: 1h).
	JWKSCacheTTL time.Duration `mapstructure:"jwks_cache_ttl"`

	// Methods restricts accepted algorithms. Defaults to RS256 for key sets
	// and static keys, HS256 for secrets.
	Methods []SigningMethod `mapstructure:"methods"`

	// Issuer is the expected "iss" claim (optional).
	Issuer string `mapstructure:"issuer"`

	// Audience is the expected "aud" claim (optional).
	Audience string `mapstructure:"audience"`

	// Leeway is the grace period applied to exp, nbf and iat (default: 60s).
	Leeway time.Duration `mapstructure:"leeway"`

	// TLS configures the key set fetch.
	TLS *security.TLSConfig `mapstructure:"tls"`

	// Now overrides the clock.
	Now func() time.Time `mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.JWKSCacheTTL == 0 {
		c.JWKSCacheTTL = time.Hour
	}
	if c.Leeway == 0 {
		c.Leeway = 60 * time.Second
	}
	if len(c.Methods) == 0 {
		switch {
		case c.JWKSURL != "":
			c.Methods = []SigningMethod{RS256}
		case c.PublicKey != nil:
			if _, ok := c.PublicKey.(*ecdsa.PublicKey); ok {
				c.Methods = []SigningMethod{ES256}
			} else {
				c.Methods = []SigningMethod{RS256}
			}
		default:
			c.Methods = []SigningMethod{HS256}
		}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Validate checks that a key source is configured and matches the methods.
func (c *Config) Validate() error {
	if c.JWKSURL == "" && c.PublicKey == nil && c.Secret == "" {
		return errors.New("jwt: one of jwks_url, public key or secret is required")
	}
	if c.Leeway < 0 {
		return errors.New("jwt: leeway must not be negative")
	}
	for _, m := range c.Methods {
		if m.gojwt() == nil {
			return errors.New("jwt: unsupported signing method: " + string(m))
		}
		if c.JWKSURL == "" && c.PublicKey == nil && !m.isHMAC() {
			return errors.New("jwt: secret only supports HMAC signing methods")
		}
	}
	if c.PublicKey != nil {
		switch c.PublicKey.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey:
		default:
			return errors.New("jwt: public key must be *rsa.PublicKey or *ecdsa.PublicKey")
		}
	}
	return c.TLS.Validate()
}

func (c *Config) methodNames() []string {
	names := make([]string, len(c.Methods))
	for i, m := range c.Methods {
		names[i] = string(m)
	}
	return names
}

func (m SigningMethod) isHMAC() bool {
	return m == HS256 || m == HS384 || m == HS512
}

// gojwt returns the golang-jwt SigningMethod instance, or nil if unknown.
func (m SigningMethod) gojwt() gojwt.SigningMethod {
	switch m {
	case HS256:
		return gojwt.SigningMethodHS256
	case HS384:
		return gojwt.SigningMethodHS384
	case HS512:
		return gojwt.SigningMethodHS512
	case RS256:
		return gojwt.SigningMethodRS256
	case RS384:
		return gojwt.SigningMethodRS384
	case RS512:
		return gojwt.SigningMethodRS512
	case ES256:
		return gojwt.SigningMethodES256
	case ES384:
		return gojwt.SigningMethodES384
	case ES512:
		return gojwt.SigningMethodES512
	default:
		return nil
	}
}
