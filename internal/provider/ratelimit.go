package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterMap holds one rate.Limiter per provider, created once at startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[ProviderName]*rate.Limiter
}

// NewRateLimiterMap creates a limiter for every known provider from its
// documented rate limit. overrides (requests per second) take precedence;
// a non-positive override disables pacing for that provider.
func NewRateLimiterMap(overrides map[ProviderName]float64) *RateLimiterMap {
	caps := ProviderCapabilities()
	m := &RateLimiterMap{
		limiters: make(map[ProviderName]*rate.Limiter, len(caps)),
	}
	for name, c := range caps {
		if c.RateLimit != nil && c.RateLimit.RequestsPerSecond > 0 {
			m.limiters[name] = rate.NewLimiter(rate.Limit(c.RateLimit.RequestsPerSecond), 1)
		}
	}
	for name, rps := range overrides {
		m.Set(name, rps)
	}
	return m
}

// Set replaces the limit for a provider. rps <= 0 removes the limiter.
func (m *RateLimiterMap) Set(name ProviderName, rps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rps <= 0 {
		delete(m.limiters, name)
		return
	}
	m.limiters[name] = rate.NewLimiter(rate.Limit(rps), 1)
}

// Wait blocks until the rate limiter for the given provider allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name ProviderName) error {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
