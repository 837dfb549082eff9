package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sydlexius/tributary/internal/provider"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/data/tributary.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Gateway.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d, want 8", cfg.Gateway.MaxConcurrency)
	}
	got := cfg.EnabledProviders()
	if len(got) != 2 || got[0] != provider.NameMusicBrainz || got[1] != provider.NameDeezer {
		t.Errorf("EnabledProviders = %v", got)
	}
	if cfg.Matching.CompleteThreshold != 0.9 {
		t.Errorf("CompleteThreshold = %v", cfg.Matching.CompleteThreshold)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.ReleaseLimit != 100 {
		t.Errorf("ReleaseLimit = %d, want 100", cfg.Sync.ReleaseLimit)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/tw.db
logging:
  level: debug
  format: json
gateway:
  max_concurrency: 3
  default:
    retry_max: 4
  providers:
    deezer:
      timeout_ms: 2000
      retry_max: 1
      backoff_base_ms: 100
      jitter_pct: 0
providers:
  lastfm:
    enabled: true
    api_key: abc123
    requests_per_second: 2.5
matching:
  min_artist_sim: 0.5
sync:
  preferred_source: deezer
  hard_delete: true
  providers: [deezer, lastfm]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/tw.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Gateway.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d", cfg.Gateway.MaxConcurrency)
	}
	// Unset fields keep their defaults.
	if cfg.Gateway.Default.RetryMax != 4 || cfg.Gateway.Default.TimeoutMS != 10000 {
		t.Errorf("Default policy = %+v", cfg.Gateway.Default)
	}
	if p := cfg.Gateway.PolicyFor(provider.NameDeezer); p.TimeoutMS != 2000 || p.RetryMax != 1 {
		t.Errorf("deezer policy = %+v", p)
	}
	if cfg.Matching.MinArtistSim != 0.5 || cfg.Matching.CompleteThreshold != 0.9 {
		t.Errorf("Matching = %+v", cfg.Matching)
	}
	if !cfg.Sync.HardDelete || cfg.Sync.PreferredSource != provider.NameDeezer {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
	if rl := cfg.RateLimits(); rl[provider.NameLastFM] != 2.5 || len(rl) != 1 {
		t.Errorf("RateLimits = %v", rl)
	}
	enabled := cfg.EnabledProviders()
	if len(enabled) != 3 || enabled[2] != provider.NameLastFM {
		t.Errorf("EnabledProviders = %v", enabled)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TW_DB_PATH", "/env/tw.db")
	t.Setenv("TW_LOG_LEVEL", "warn")
	t.Setenv("TW_MAX_CONCURRENCY", "2")
	t.Setenv("TW_LASTFM_API_KEY", "envkey")
	t.Setenv("TW_SLSKD_URL", "http://slskd:5030")
	t.Setenv("TW_HARD_DELETE", "true")
	t.Setenv("TW_PREFERRED_SOURCE", "lastfm")

	path := writeConfig(t, "database:\n  path: /file/tw.db\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/env/tw.db" {
		t.Errorf("env should win over file, got %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Gateway.MaxConcurrency != 2 {
		t.Errorf("MaxConcurrency = %d", cfg.Gateway.MaxConcurrency)
	}
	lfm := cfg.Providers[provider.NameLastFM]
	if !lfm.Enabled || lfm.APIKey != "envkey" {
		t.Errorf("lastfm = %+v", lfm)
	}
	if s := cfg.Providers[provider.NameSlskd]; !s.Enabled || s.BaseURL != "http://slskd:5030" {
		t.Errorf("slskd = %+v", s)
	}
	if !cfg.Sync.HardDelete || cfg.Sync.PreferredSource != provider.NameLastFM {
		t.Errorf("Sync = %+v", cfg.Sync)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	path := writeConfig(t, `
database:
  path: ""
logging:
  level: loud
gateway:
  max_concurrency: 0
providers:
  napster:
    enabled: true
  slskd:
    enabled: true
matching:
  nearly_threshold: 0.95
sync:
  release_limit: -1
  preferred_source: tidal
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"database path is required",
		"loud",
		"gateway",
		`unknown provider "napster"`,
		"slskd: base_url is required",
		"nearly_threshold",
		"release_limit",
		`preferred_source "tidal"`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q:\n%v", want, err)
		}
	}
}

func TestInvalidYAML(t *testing.T) {
	path := writeConfig(t, "database: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
