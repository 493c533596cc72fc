package auth

import (
	"context"

	"github.com/kbukum/agentmesh/auth/jwt"
)

// TokenValidator checks a bearer token and the scope it must carry. The
// registry gate depends on this contract rather than on a concrete
// validator.
type TokenValidator interface {
	Validate(ctx context.Context, token, requiredScope string) (*jwt.Claims, error)
}

// TokenValidatorFunc adapts an ordinary function to TokenValidator.
type TokenValidatorFunc func(ctx context.Context, token, requiredScope string) (*jwt.Claims, error)

// Validate implements TokenValidator.
func (f TokenValidatorFunc) Validate(ctx context.Context, token, requiredScope string) (*jwt.Claims, error) {
	return f(ctx, token, requiredScope)
}

// NewValidator builds the validator described by cfg.
func NewValidator(cfg *Config) (*jwt.Validator, error) {
	return jwt.NewValidator(cfg.ValidatorConfig())
}
