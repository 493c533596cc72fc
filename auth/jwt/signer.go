package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SignerConfig configures locally minted tokens.
type SignerConfig struct {
	Secret   string
	Method   SigningMethod
	Issuer   string
	Audience string
	Now      func() time.Time
}

// Signer mints HMAC tokens that a Validator sharing the secret accepts.
type Signer struct {
	cfg SignerConfig
}

// NewSigner creates a signer. Only HMAC methods are supported.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.Method == "" {
		cfg.Method = HS256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Secret == "" {
		return nil, errors.New("jwt: signer secret is required")
	}
	if !cfg.Method.isHMAC() {
		return nil, errors.New("jwt: signer only supports HMAC signing methods")
	}
	return &Signer{cfg: cfg}, nil
}

// Sign issues a token for subject granting scopes, valid for ttl.
func (s *Signer) Sign(subject string, scopes []string, ttl time.Duration) (string, time.Time, error) {
	now := s.cfg.Now()
	exp := now.Add(ttl)

	claims := tokenClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(exp),
		},
		Scp:  scopeList(scopes),
		Name: subject,
	}
	if s.cfg.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{s.cfg.Audience}
	}

	signed, err := gojwt.NewWithClaims(s.cfg.Method.gojwt(), claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, exp, nil
}
