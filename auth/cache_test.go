package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/kbukum/agentmesh/errors"
	"github.com/kbukum/agentmesh/logger"
	"github.com/kbukum/agentmesh/resilience"
	"github.com/kbukum/agentmesh/testutil"
)

type fakeProvider struct {
	calls    atomic.Int32
	now      func() time.Time
	lifetime time.Duration
	delay    time.Duration
	errs     []error
}

func (p *fakeProvider) Kind() ProviderKind { return KindClientCredentials }
func (p *fakeProvider) Identity() string   { return "tenant/fake" }
func (p *fakeProvider) sealed()            {}

func (p *fakeProvider) Acquire(_ context.Context, scopes []string) (*Credential, error) {
	n := int(p.calls.Add(1))
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if n <= len(p.errs) && p.errs[n-1] != nil {
		return nil, p.errs[n-1]
	}
	now := p.now()
	return &Credential{Token: "token", Scopes: scopes, IssuedAt: now, ExpiresAt: now.Add(p.lifetime), Provider: p.Kind()}, nil
}

func newTestCache(clock *testutil.Clock, ttl time.Duration) *TokenCache {
	return NewTokenCache(CacheConfig{
		TTL:          ttl,
		RefreshFloor: 5 * time.Minute,
		Retry:        resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, RetryIf: resilience.RetryableAppError},
		Now:          clock.Now,
	}, WithCacheLogger(logger.Nop()))
}

func TestTokenCache_ConcurrentAcquireSharesOneCall(t *testing.T) {
	clock := testutil.NewClock()
	p := &fakeProvider{now: clock.Now, lifetime: time.Hour, delay: 20 * time.Millisecond}
	cache := newTestCache(clock, 2*time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Acquire(context.Background(), p, []string{"agentic_ai_solution"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Acquire: %v", err)
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("expected one provider call, got %d", got)
	}
}

func TestTokenCache_RefreshMargin(t *testing.T) {
	clock := testutil.NewClock()
	p := &fakeProvider{now: clock.Now, lifetime: time.Hour}
	cache := newTestCache(clock, 2*time.Hour)
	ctx := context.Background()

	if _, err := cache.Acquire(ctx, p, []string{"b", "a"}); err != nil {
		t.Fatal(err)
	}
	// Scope order does not matter.
	if _, err := cache.Acquire(ctx, p, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if got := p.calls.Load(); got != 1 {
		t.Fatalf("expected cache hit, got %d calls", got)
	}

	// Margin is max(10% of 1h, 5m) = 6m.
	clock.Advance(53 * time.Minute)
	_, _ = cache.Acquire(ctx, p, []string{"a", "b"})
	if got := p.calls.Load(); got != 1 {
		t.Errorf("expected hit 7m before expiry, got %d calls", got)
	}

	clock.Advance(2 * time.Minute)
	_, _ = cache.Acquire(ctx, p, []string{"a", "b"})
	if got := p.calls.Load(); got != 2 {
		t.Errorf("expected refresh inside margin, got %d calls", got)
	}
}

func TestTokenCache_TTLCap(t *testing.T) {
	clock := testutil.NewClock()
	p := &fakeProvider{now: clock.Now, lifetime: time.Hour}
	cache := newTestCache(clock, 10*time.Minute)
	ctx := context.Background()

	_, _ = cache.Acquire(ctx, p, nil)
	clock.Advance(11 * time.Minute)
	_, _ = cache.Acquire(ctx, p, nil)
	if got := p.calls.Load(); got != 2 {
		t.Errorf("expected entry capped by cache ttl, got %d calls", got)
	}
}

func TestTokenCache_RetriesRetryableErrors(t *testing.T) {
	clock := testutil.NewClock()
	p := &fakeProvider{now: clock.Now, lifetime: time.Hour, errs: []error{apperrors.AuthUnavailable("client-credentials", nil)}}
	cache := newTestCache(clock, time.Hour)

	cred, err := cache.Acquire(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if cred.Token != "token" || p.calls.Load() != 2 {
		t.Errorf("expected two calls, got %d", p.calls.Load())
	}
}

func TestTokenCache_DoesNotRetryConfigErrors(t *testing.T) {
	clock := testutil.NewClock()
	p := &fakeProvider{now: clock.Now, lifetime: time.Hour, errs: []error{apperrors.ProviderConfig("scope-only", "no")}}
	cache := newTestCache(clock, time.Hour)

	_, err := cache.Acquire(context.Background(), p, nil)
	if !apperrors.HasCode(err, apperrors.ErrCodeProviderConfig) {
		t.Errorf("expected PROVIDER_CONFIGURATION, got %v", err)
	}
	if p.calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", p.calls.Load())
	}
	if cache.Len() != 0 {
		t.Error("failures must not be cached")
	}
}

func TestTokenCache_InvalidateAndTokenSource(t *testing.T) {
	clock := testutil.NewClock()
	p := &fakeProvider{now: clock.Now, lifetime: time.Hour}
	cache := newTestCache(clock, time.Hour)
	source := cache.TokenSource(p, "agentic_ai_solution")

	tok, err := source(context.Background())
	if err != nil || tok != "token" {
		t.Fatalf("unexpected token %q, %v", tok, err)
	}
	cache.Invalidate(p, []string{"agentic_ai_solution"})
	if cache.Len() != 0 {
		t.Fatal("expected entry removed")
	}
	_, _ = source(context.Background())
	if p.calls.Load() != 2 {
		t.Errorf("expected refetch after invalidate, got %d calls", p.calls.Load())
	}
}

func TestTokenCache_ReturnsCopies(t *testing.T) {
	clock := testutil.NewClock()
	p := &fakeProvider{now: clock.Now, lifetime: time.Hour}
	cache := newTestCache(clock, time.Hour)

	first, _ := cache.Acquire(context.Background(), p, []string{"x"})
	first.Scopes[0] = "tampered"
	second, _ := cache.Acquire(context.Background(), p, []string{"x"})
	if second.Scopes[0] != "x" {
		t.Errorf("cache entry was mutated through a returned credential")
	}
}

// gatedProvider blocks until release is closed or its context ends.
type gatedProvider struct {
	now     func() time.Time
	calls   atomic.Int32
	release chan struct{}
	aborted chan struct{}
}

func newGatedProvider(now func() time.Time) *gatedProvider {
	return &gatedProvider{now: now, release: make(chan struct{}), aborted: make(chan struct{})}
}

func (p *gatedProvider) Kind() ProviderKind { return KindInteractive }
func (p *gatedProvider) Identity() string   { return "tenant/gated" }
func (p *gatedProvider) sealed()            {}

func (p *gatedProvider) Acquire(ctx context.Context, scopes []string) (*Credential, error) {
	p.calls.Add(1)
	select {
	case <-p.release:
		now := p.now()
		return &Credential{Token: "token", Scopes: scopes, IssuedAt: now, ExpiresAt: now.Add(time.Hour), Provider: p.Kind()}, nil
	case <-ctx.Done():
		close(p.aborted)
		return nil, ctx.Err()
	}
}

func (c *TokenCache) waiters(p Provider, scopes []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.flights[cacheKey(p, normalizeScopes(scopes))]; ok {
		return f.waiters
	}
	return 0
}

func TestTokenCache_CancelledWaiterDoesNotFailOthers(t *testing.T) {
	clock := testutil.NewClock()
	p := newGatedProvider(clock.Now)
	cache := newTestCache(clock, time.Hour)
	scopes := []string{"agentic_ai_solution"}

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	first := make(chan error, 1)
	go func() {
		_, err := cache.Acquire(ctx1, p, scopes)
		first <- err
	}()
	testutil.Eventually(t, 2*time.Second, func() bool { return p.calls.Load() == 1 }, "provider never called")

	second := make(chan error, 1)
	go func() {
		_, err := cache.Acquire(context.Background(), p, scopes)
		second <- err
	}()
	testutil.Eventually(t, 2*time.Second, func() bool { return cache.waiters(p, scopes) == 2 }, "second caller never joined")

	cancel1()
	if err := <-first; err != context.Canceled {
		t.Errorf("cancelled caller: expected context.Canceled, got %v", err)
	}

	close(p.release)
	select {
	case err := <-second:
		if err != nil {
			t.Errorf("remaining caller failed with %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remaining caller never returned")
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("expected one provider call, got %d", got)
	}
}

func TestTokenCache_WaiterHonoursOwnDeadline(t *testing.T) {
	clock := testutil.NewClock()
	p := newGatedProvider(clock.Now)
	cache := newTestCache(clock, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := cache.Acquire(ctx, p, nil)
	if err != context.DeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("caller waited %s past its deadline", waited)
	}

	// With no one left waiting, the shared acquisition is abandoned.
	select {
	case <-p.aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("provider was not cancelled after its last waiter left")
	}
	if cache.waiters(p, nil) != 0 || cache.Len() != 0 {
		t.Error("abandoned flight left state behind")
	}
}
