package jwt

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/httpclient"
)

// minRefreshInterval bounds refetches triggered by unknown key ids.
const minRefreshInterval = time.Minute

// keySet caches the issuer's verification keys and refreshes them on TTL.
type keySet struct {
	url    string
	ttl    time.Duration
	now    func() time.Time
	client *httpclient.Client
	group  singleflight.Group

	mu        sync.RWMutex
	keys      map[string]crypto.PublicKey
	fetchedAt time.Time
}

// jwk represents a JSON Web Key.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`

	// RSA
	N string `json:"n"`
	E string `json:"e"`

	// EC
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

type jwksDoc struct {
	Keys []jwk `json:"keys"`
}

func newKeySet(cfg *Config) (*keySet, error) {
	client, err := httpclient.New(httpclient.Config{
		Timeout: 10 * time.Second,
		TLS:     cfg.TLS,
		Retry:   httpclient.DefaultRetryConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: jwks client: %w", err)
	}
	return &keySet{url: cfg.JWKSURL, ttl: cfg.JWKSCacheTTL, now: cfg.Now, client: client}, nil
}

// key returns the verification key for kid, fetching the key set when it
// is stale or when kid is unknown and the last fetch is old enough.
func (s *keySet) key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	k, found, fetchedAt := s.lookup(kid)
	age := s.now().Sub(fetchedAt)
	if found && age < s.ttl {
		return k, nil
	}
	if !found && !fetchedAt.IsZero() && age < minRefreshInterval {
		return nil, apperrors.InvalidSignature()
	}

	// The fetch outlives any one request; the client timeout bounds it.
	ch := s.group.DoChan("refresh", func() (any, error) {
		return nil, s.refresh(context.WithoutCancel(ctx))
	})
	var err error
	select {
	case <-ctx.Done():
		return nil, apperrors.AuthUnavailable("jwks", ctx.Err())
	case res := <-ch:
		err = res.Err
	}
	if err != nil {
		if found {
			// Serve the previous key while the issuer is unreachable.
			return k, nil
		}
		return nil, err
	}

	if k, found, _ = s.lookup(kid); !found {
		return nil, apperrors.InvalidSignature()
	}
	return k, nil
}

func (s *keySet) lookup(kid string) (crypto.PublicKey, bool, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if kid == "" && len(s.keys) == 1 {
		for _, k := range s.keys {
			return k, true, s.fetchedAt
		}
	}
	k, ok := s.keys[kid]
	return k, ok, s.fetchedAt
}

func (s *keySet) refresh(ctx context.Context) error {
	resp, err := httpclient.Get[jwksDoc](s.client, ctx, s.url)
	if err != nil {
		return apperrors.AuthUnavailable("jwks", err)
	}

	keys := make(map[string]crypto.PublicKey, len(resp.Data.Keys))
	for i := range resp.Data.Keys {
		k := resp.Data.Keys[i]
		if k.Use != "sig" && k.Use != "" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	s.mu.Lock()
	s.keys = keys
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return nil
}

// publicKey converts a JWK to a Go crypto.PublicKey.
func (k *jwk) publicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		return k.rsaPublicKey()
	case "EC":
		return k.ecPublicKey()
	default:
		return nil, fmt.Errorf("unsupported key type: %s", k.Kty)
	}
}

func (k *jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	n, err := decodeBigInt(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode RSA modulus: %w", err)
	}
	e, err := decodeBigInt(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode RSA exponent: %w", err)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func (k *jwk) ecPublicKey() (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve: %s", k.Crv)
	}
	x, err := decodeBigInt(k.X)
	if err != nil {
		return nil, fmt.Errorf("decode EC x: %w", err)
	}
	y, err := decodeBigInt(k.Y)
	if err != nil {
		return nil, fmt.Errorf("decode EC y: %w", err)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func decodeBigInt(s string) (*big.Int, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
