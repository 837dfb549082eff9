// Package config loads tributary configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/tributary/internal/gateway"
	"github.com/sydlexius/tributary/internal/logging"
	"github.com/sydlexius/tributary/internal/match"
	"github.com/sydlexius/tributary/internal/provider"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig                           `yaml:"database"`
	Logging   logging.Config                           `yaml:"logging"`
	Gateway   gateway.Config                           `yaml:"gateway"`
	Providers map[provider.ProviderName]ProviderConfig `yaml:"providers"`
	Matching  match.Options                            `yaml:"matching"`
	Sync      SyncConfig                               `yaml:"sync"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig configures one provider adapter.
type ProviderConfig struct {
	Enabled           bool    `yaml:"enabled"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 keeps the documented limit
	SearchTimeoutMS   int     `yaml:"search_timeout_ms"`   // slskd network search window
}

// SearchTimeout converts SearchTimeoutMS to a duration.
func (p ProviderConfig) SearchTimeout() time.Duration {
	return time.Duration(p.SearchTimeoutMS) * time.Millisecond
}

// SyncConfig controls artist reconciliation.
type SyncConfig struct {
	PreferredSource provider.ProviderName   `yaml:"preferred_source"`
	ReleaseLimit    int                     `yaml:"release_limit"`
	HardDelete      bool                    `yaml:"hard_delete"`
	Providers       []provider.ProviderName `yaml:"providers"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/tributary.db",
		},
		Logging: logging.DefaultConfig(),
		Gateway: gateway.DefaultConfig(),
		Providers: map[provider.ProviderName]ProviderConfig{
			provider.NameMusicBrainz: {Enabled: true},
			provider.NameDeezer:      {Enabled: true},
			provider.NameLastFM:      {},
			provider.NameSlskd:       {},
		},
		Matching: match.DefaultOptions(),
		Sync: SyncConfig{
			PreferredSource: provider.NameMusicBrainz,
			ReleaseLimit:    100,
			Providers:       []provider.ProviderName{provider.NameMusicBrainz, provider.NameDeezer},
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// EnabledProviders returns the enabled providers in display order.
func (c *Config) EnabledProviders() []provider.ProviderName {
	var out []provider.ProviderName
	for _, name := range provider.AllProviderNames() {
		if c.Providers[name].Enabled {
			out = append(out, name)
		}
	}
	return out
}

// RateLimits returns the requests-per-second overrides for providers that
// set one.
func (c *Config) RateLimits() map[provider.ProviderName]float64 {
	out := make(map[provider.ProviderName]float64)
	for name, p := range c.Providers {
		if p.RequestsPerSecond > 0 {
			out[name] = p.RequestsPerSecond
		}
	}
	return out
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("TW_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TW_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("TW_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("TW_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Gateway.MaxConcurrency = n
		}
	}
	if v := os.Getenv("TW_LASTFM_API_KEY"); v != "" {
		c.setProvider(provider.NameLastFM, func(p *ProviderConfig) {
			p.APIKey = v
			p.Enabled = true
		})
	}
	if v := os.Getenv("TW_SLSKD_URL"); v != "" {
		c.setProvider(provider.NameSlskd, func(p *ProviderConfig) {
			p.BaseURL = v
			p.Enabled = true
		})
	}
	if v := os.Getenv("TW_SLSKD_API_KEY"); v != "" {
		c.setProvider(provider.NameSlskd, func(p *ProviderConfig) { p.APIKey = v })
	}
	if v := os.Getenv("TW_PREFERRED_SOURCE"); v != "" {
		c.Sync.PreferredSource = provider.ProviderName(v)
	}
	if v := os.Getenv("TW_HARD_DELETE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Sync.HardDelete = b
		}
	}
}

func (c *Config) setProvider(name provider.ProviderName, fn func(*ProviderConfig)) {
	if c.Providers == nil {
		c.Providers = make(map[provider.ProviderName]ProviderConfig)
	}
	p := c.Providers[name]
	fn(&p)
	c.Providers[name] = p
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("gateway: %w", err))
	}
	if err := c.Matching.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("matching: %w", err))
	}

	known := provider.AllProviderNames()
	for name, p := range c.Providers {
		if !slices.Contains(known, name) {
			errs = append(errs, fmt.Errorf("providers: unknown provider %q", name))
			continue
		}
		if p.RequestsPerSecond < 0 {
			errs = append(errs, fmt.Errorf("providers.%s: requests_per_second must be >= 0", name))
		}
		if p.SearchTimeoutMS < 0 {
			errs = append(errs, fmt.Errorf("providers.%s: search_timeout_ms must be >= 0", name))
		}
		if !p.Enabled {
			continue
		}
		if name == provider.NameLastFM && p.APIKey == "" {
			errs = append(errs, errors.New("providers.lastfm: api_key is required when enabled"))
		}
		if name == provider.NameSlskd && p.BaseURL == "" {
			errs = append(errs, errors.New("providers.slskd: base_url is required when enabled"))
		}
	}

	if c.Sync.ReleaseLimit < 0 {
		errs = append(errs, fmt.Errorf("sync: release_limit must be >= 0, got %d", c.Sync.ReleaseLimit))
	}
	if c.Sync.PreferredSource != "" && !slices.Contains(known, c.Sync.PreferredSource) {
		errs = append(errs, fmt.Errorf("sync: unknown preferred_source %q", c.Sync.PreferredSource))
	}
	for _, name := range c.Sync.Providers {
		if !slices.Contains(known, name) {
			errs = append(errs, fmt.Errorf("sync: unknown provider %q", name))
		}
	}
	return errors.Join(errs...)
}
