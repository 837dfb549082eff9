package gateway

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sydlexius/tributary/internal/provider"
)

// RetryPolicy controls how one provider's calls are attempted.
type RetryPolicy struct {
	TimeoutMS     int     `yaml:"timeout_ms" json:"timeout_ms"`           // per attempt; 0 disables the deadline
	RetryMax      int     `yaml:"retry_max" json:"retry_max"`             // retries after the first attempt
	BackoffBaseMS int     `yaml:"backoff_base_ms" json:"backoff_base_ms"` // delay before the first retry
	JitterPct     float64 `yaml:"jitter_pct" json:"jitter_pct"`           // fraction in [0,1]
}

// DefaultPolicy is used for providers without an explicit policy.
func DefaultPolicy() RetryPolicy {
	return RetryPolicy{
		TimeoutMS:     10000,
		RetryMax:      2,
		BackoffBaseMS: 250,
		JitterPct:     0.2,
	}
}

// Validate checks that every field is in range.
func (p RetryPolicy) Validate() error {
	var errs []error
	if p.TimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("timeout_ms must be >= 0, got %d", p.TimeoutMS))
	}
	if p.RetryMax < 0 {
		errs = append(errs, fmt.Errorf("retry_max must be >= 0, got %d", p.RetryMax))
	}
	if p.BackoffBaseMS < 0 {
		errs = append(errs, fmt.Errorf("backoff_base_ms must be >= 0, got %d", p.BackoffBaseMS))
	}
	if p.JitterPct < 0 || p.JitterPct > 1 || math.IsNaN(p.JitterPct) {
		errs = append(errs, fmt.Errorf("jitter_pct must be in [0,1], got %v", p.JitterPct))
	}
	return errors.Join(errs...)
}

// Timeout returns the per-attempt deadline, or 0 for none.
func (p RetryPolicy) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// MaxAttempts is the first attempt plus RetryMax retries.
func (p RetryPolicy) MaxAttempts() int {
	return p.RetryMax + 1
}

// Backoff returns the delay after the given failed attempt (1-based):
// BackoffBaseMS * 2^(attempt-1), moved uniformly by up to JitterPct of
// itself. r is a uniform sample in [0,1); 0.5 means no jitter. The result
// is never negative.
func (p RetryPolicy) Backoff(attempt int, r float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(p.BackoffBaseMS) * math.Pow(2, float64(attempt-1))
	delay := base + base*p.JitterPct*(2*r-1)
	if delay <= 0 {
		return 0
	}
	return time.Duration(delay * float64(time.Millisecond))
}

// Config is the gateway configuration: a global concurrency cap, a default
// policy and per-provider overrides.
type Config struct {
	MaxConcurrency int                                   `yaml:"max_concurrency" json:"max_concurrency"`
	Default        RetryPolicy                           `yaml:"default" json:"default"`
	Providers      map[provider.ProviderName]RetryPolicy `yaml:"providers" json:"providers,omitempty"`
}

// DefaultConfig returns a Config with the default policy and a cap of 8
// in-flight calls.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Default:        DefaultPolicy(),
	}
}

// Validate checks the concurrency cap and every policy.
func (c Config) Validate() error {
	var errs []error
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency))
	}
	if err := c.Default.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("default policy: %w", err))
	}
	for name, p := range c.Providers {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("policy for %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// PolicyFor returns the provider's policy, falling back to the default.
func (c Config) PolicyFor(name provider.ProviderName) RetryPolicy {
	if p, ok := c.Providers[name]; ok {
		return p
	}
	return c.Default
}
