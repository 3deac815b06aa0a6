package fetch

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateBudget tracks per-provider token buckets. A call may only go out when
// the target provider has a token; an empty bucket means the caller falls
// back instead of blocking. Tokens replenish at the configured per-minute
// rate.
type RateBudget struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateBudget creates an empty budget set.
func NewRateBudget() *RateBudget {
	return &RateBudget{limiters: make(map[string]*rate.Limiter)}
}

// AddProvider registers a provider with a requests-per-minute budget and
// burst capacity.
func (b *RateBudget) AddProvider(name string, perMinute float64, burst int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if burst < 1 {
		burst = 1
	}
	b.limiters[name] = rate.NewLimiter(rate.Limit(perMinute/60.0), burst)
}

// Allow consumes one token for the provider if available. An unregistered
// provider is unlimited.
func (b *RateBudget) Allow(provider string) bool {
	b.mu.RLock()
	limiter, ok := b.limiters[provider]
	b.mu.RUnlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}

// Tokens reports the currently available tokens for a provider, for
// observability.
func (b *RateBudget) Tokens(provider string) float64 {
	b.mu.RLock()
	limiter, ok := b.limiters[provider]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return limiter.Tokens()
}
