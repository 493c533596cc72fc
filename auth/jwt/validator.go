package jwt

import (
	"context"
	"errors"
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/kbukum/agentmesh/errors"
)

// Validator verifies bearer tokens against a key set, a static public key
// or a shared secret, then checks issuer, audience, expiry and scope.
type Validator struct {
	cfg  Config
	keys *keySet
}

// NewValidator creates a validator from cfg.
func NewValidator(cfg Config) (*Validator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := &Validator{cfg: cfg}
	if cfg.JWKSURL != "" {
		ks, err := newKeySet(&v.cfg)
		if err != nil {
			return nil, err
		}
		v.keys = ks
	}
	return v, nil
}

// Validate parses raw and returns its claims. Signature problems, expiry,
// audience mismatch and missing scope each map to a distinct error code.
// The scope is only checked once the token itself is trusted.
func (v *Validator) Validate(ctx context.Context, raw, requiredScope string) (*Claims, error) {
	if raw == "" {
		return nil, apperrors.Unauthorized("")
	}

	var tc tokenClaims
	if _, err := gojwt.ParseWithClaims(raw, &tc, v.keyFunc(ctx), v.parserOptions()...); err != nil {
		return nil, v.classify(err)
	}

	claims := tc.toClaims()
	if !claims.HasScope(requiredScope) {
		return nil, apperrors.InsufficientScope(requiredScope)
	}
	return claims, nil
}

// Describe returns the key source for startup logs.
func (v *Validator) Describe() string {
	switch {
	case v.keys != nil:
		return fmt.Sprintf("jwks(%s)", v.cfg.JWKSURL)
	case v.cfg.PublicKey != nil:
		return "static-key"
	default:
		return "shared-secret"
	}
}

func (v *Validator) keyFunc(ctx context.Context) gojwt.Keyfunc {
	return func(t *gojwt.Token) (interface{}, error) {
		switch {
		case v.keys != nil:
			kid, _ := t.Header["kid"].(string)
			return v.keys.key(ctx, kid)
		case v.cfg.PublicKey != nil:
			return v.cfg.PublicKey, nil
		default:
			return []byte(v.cfg.Secret), nil
		}
	}
}

func (v *Validator) parserOptions() []gojwt.ParserOption {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods(v.cfg.methodNames()),
		gojwt.WithLeeway(v.cfg.Leeway),
		gojwt.WithTimeFunc(v.cfg.Now),
		gojwt.WithIssuedAt(),
		gojwt.WithExpirationRequired(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(v.cfg.Audience))
	}
	return opts
}

func (v *Validator) classify(err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, gojwt.ErrTokenMalformed):
		return apperrors.InvalidToken("Malformed authentication token.").WithCause(err)
	case errors.Is(err, gojwt.ErrTokenSignatureInvalid), errors.Is(err, gojwt.ErrTokenUnverifiable):
		return apperrors.InvalidSignature().WithCause(err)
	case errors.Is(err, gojwt.ErrTokenRequiredClaimMissing):
		return apperrors.InvalidToken("Token carries no expiry.").WithCause(err)
	case errors.Is(err, gojwt.ErrTokenExpired):
		return apperrors.TokenExpired().WithCause(err)
	case errors.Is(err, gojwt.ErrTokenInvalidAudience):
		return apperrors.InvalidAudience(v.cfg.Audience).WithCause(err)
	case errors.Is(err, gojwt.ErrTokenInvalidIssuer):
		return apperrors.InvalidToken("Token issuer is not trusted.").WithCause(err)
	default:
		return apperrors.InvalidToken("").WithCause(err)
	}
}
