// Package authctx carries the raw bearer token and the validated claims of
// a request through context.Context.
//
//	ctx = authctx.WithToken(ctx, raw)        // transport layer
//	ctx = authctx.Set(ctx, claims)           // after validation
//	claims, ok := authctx.Get[*jwt.Claims](ctx)
package authctx

import (
	"context"
	"errors"
)

type (
	claimsKey struct{}
	tokenKey  struct{}
)

// ErrNoClaims is returned when claims are not found in the context.
var ErrNoClaims = errors.New("authctx: no claims in context")

// ErrNoToken is returned when the request carried no bearer token.
var ErrNoToken = errors.New("authctx: no bearer token in context")

// WithToken stores a raw bearer token. Empty tokens are not stored.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// Token returns the raw bearer token, if any.
func Token(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok && tok != ""
}

// Set stores validated claims.
func Set(ctx context.Context, claims any) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// Get retrieves typed claims.
func Get[T any](ctx context.Context) (T, bool) {
	claims, ok := ctx.Value(claimsKey{}).(T)
	return claims, ok
}

// GetOrError retrieves typed claims or ErrNoClaims.
func GetOrError[T any](ctx context.Context) (T, error) {
	claims, ok := Get[T](ctx)
	if !ok {
		return claims, ErrNoClaims
	}
	return claims, nil
}
