package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures a KeyedRateLimiter.
type RateLimiterConfig struct {
	// Rate is the number of requests allowed per second per key.
	Rate float64
	// Burst is the maximum burst size per key.
	Burst int
	// IdleTTL evicts keys not seen for this long.
	IdleTTL time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// KeyedRateLimiter keeps one token bucket per key, e.g. per client address.
type KeyedRateLimiter struct {
	config RateLimiterConfig

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedRateLimiter creates a new keyed rate limiter.
func NewKeyedRateLimiter(config RateLimiterConfig) *KeyedRateLimiter {
	if config.Rate <= 0 {
		config.Rate = 10
	}
	if config.Burst <= 0 {
		config.Burst = int(config.Rate)
		if config.Burst < 1 {
			config.Burst = 1
		}
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &KeyedRateLimiter{
		config:    config,
		visitors:  make(map[string]*visitor),
		lastSweep: config.Now(),
	}
}

// Allow reports whether a request for key may proceed now.
func (rl *KeyedRateLimiter) Allow(key string) bool {
	now := rl.config.Now()

	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	if now.Sub(rl.lastSweep) >= rl.config.IdleTTL {
		rl.sweep(now)
	}
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (rl *KeyedRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// sweep drops idle visitors. Callers hold mu.
func (rl *KeyedRateLimiter) sweep(now time.Time) {
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.config.IdleTTL {
			delete(rl.visitors, key)
		}
	}
	rl.lastSweep = now
}
