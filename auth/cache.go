package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/observability"
	"github.com/kbukum/agentmesh/resilience"
)

// CacheConfig configures a TokenCache.
type CacheConfig struct {
	// TTL caps how long a credential is served after issue.
	TTL time.Duration
	// RefreshFloor is the minimum refresh margin. The margin is the larger
	// of this and a tenth of the token lifetime, but never more than half
	// of it.
	RefreshFloor time.Duration
	// Retry governs provider calls on a miss.
	Retry resilience.RetryConfig
	// Now overrides the clock.
	Now func() time.Time
}

// CacheConfigFrom derives cache settings from the auth configuration.
func CacheConfigFrom(cfg *Config) CacheConfig {
	return CacheConfig{
		TTL:          cfg.CacheTTL(),
		RefreshFloor: cfg.RefreshFloor(),
		Retry:        resilience.DefaultRetryConfig(),
	}
}

// TokenCache keeps one live credential per provider and scope set.
// Concurrent misses for the same key share a single provider call.
type TokenCache struct {
	cfg     CacheConfig
	log     *logger.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]*Credential
	flights map[string]*flight
	group   singleflight.Group
}

// flight is the context shared by every caller waiting on one key. It is
// cancelled once the last waiter has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// CacheOption customizes a TokenCache.
type CacheOption func(*TokenCache)

// WithCacheLogger sets the cache logger.
func WithCacheLogger(l *logger.Logger) CacheOption {
	return func(c *TokenCache) { c.log = l }
}

// WithCacheMetrics records hits, misses and failures.
func WithCacheMetrics(m *observability.Metrics) CacheOption {
	return func(c *TokenCache) { c.metrics = m }
}

// NewTokenCache creates an empty cache.
func NewTokenCache(cfg CacheConfig, opts ...CacheOption) *TokenCache {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	c := &TokenCache{cfg: cfg, entries: make(map[string]*Credential), flights: make(map[string]*flight)}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.GetGlobalLogger()
	}
	c.log = c.log.WithComponent("token-cache")
	return c
}

// Acquire returns a cached credential for p and scopes, fetching a new one
// when none is fresh. Retryable provider failures are retried with backoff.
func (c *TokenCache) Acquire(ctx context.Context, p Provider, scopes []string) (*Credential, error) {
	scopes = normalizeScopes(scopes)
	key := cacheKey(p, scopes)
	kind := string(p.Kind())

	if cred, ok := c.lookup(key); ok {
		c.metrics.RecordTokenRequest(ctx, kind, true, nil)
		return cred, nil
	}

	for attempt := 0; ; attempt++ {
		cred, err := c.await(ctx, key, p, scopes)
		if err != nil && attempt < 2 && ctx.Err() == nil && errors.Is(err, context.Canceled) {
			// Joined a flight abandoned by all of its earlier waiters.
			continue
		}
		c.metrics.RecordTokenRequest(ctx, kind, false, err)
		return cred, err
	}
}

// await joins the flight for key and waits for its result or for ctx.
func (c *TokenCache) await(ctx context.Context, key string, p Provider, scopes []string) (*Credential, error) {
	f := c.join(ctx, key)
	defer c.leave(key, f)

	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetch(f.ctx, key, p, scopes)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Credential).clone(), nil
	}
}

func (c *TokenCache) fetch(ctx context.Context, key string, p Provider, scopes []string) (*Credential, error) {
	if cred, ok := c.lookup(key); ok {
		return cred, nil
	}
	kind := string(p.Kind())

	spanCtx, span := observability.StartSpan(ctx, observability.SpanTokenAcquire,
		attribute.String(observability.AttrProvider, kind))
	start := time.Now()
	cred, err := resilience.Retry(spanCtx, c.retryConfig(kind), func() (*Credential, error) {
		return p.Acquire(spanCtx, scopes)
	})
	observability.EndSpan(span, err)
	if err != nil {
		c.log.WithError(err).Warn("token acquisition failed", logger.Fields(
			logger.FieldProvider, kind, logger.FieldScope, strings.Join(scopes, " ")))
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cred
	c.mu.Unlock()
	c.log.Debug("token acquired", logger.DurationFields("acquire", time.Since(start)))
	return cred.clone(), nil
}

func (c *TokenCache) join(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

func (c *TokenCache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
}

// TokenSource adapts the cache to a bearer token callback for outbound
// HTTP clients.
func (c *TokenCache) TokenSource(p Provider, scopes ...string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		cred, err := c.Acquire(ctx, p, scopes)
		if err != nil {
			return "", err
		}
		return cred.Token, nil
	}
}

// Invalidate drops the entry for p and scopes.
func (c *TokenCache) Invalidate(p Provider, scopes []string) {
	key := cacheKey(p, normalizeScopes(scopes))
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of cached credentials.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TokenCache) lookup(key string) (*Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.fresh(cred, c.cfg.Now()) {
		delete(c.entries, key)
		return nil, false
	}
	return cred.clone(), true
}

// fresh reports whether cred may still be served at now.
func (c *TokenCache) fresh(cred *Credential, now time.Time) bool {
	lifetime := cred.Lifetime()
	margin := max(lifetime/10, c.cfg.RefreshFloor)
	margin = min(margin, lifetime/2)

	refreshAt := cred.ExpiresAt.Add(-margin)
	if capAt := cred.IssuedAt.Add(c.cfg.TTL); capAt.Before(refreshAt) {
		refreshAt = capAt
	}
	return now.Before(refreshAt)
}

func (c *TokenCache) retryConfig(kind string) resilience.RetryConfig {
	cfg := c.cfg.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
			c.log.WithError(err).Debug("retrying token acquisition", logger.Fields(
				logger.FieldProvider, kind, "attempt", attempt, "backoff_ms", backoff.Milliseconds()))
		}
	}
	return cfg
}

func normalizeScopes(scopes []string) []string {
	out := slices.Clone(scopes)
	slices.Sort(out)
	return slices.Compact(out)
}

// cacheKey fingerprints the provider and scope set so keys stay short and
// opaque in logs and dumps.
func cacheKey(p Provider, scopes []string) string {
	sum := blake2b.Sum256([]byte(string(p.Kind()) + "\x00" + p.Identity() + "\x00" + strings.Join(scopes, " ")))
	return hex.EncodeToString(sum[:16])
}
