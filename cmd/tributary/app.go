package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sydlexius/tributary/internal/catalog"
	"github.com/sydlexius/tributary/internal/config"
	"github.com/sydlexius/tributary/internal/database"
	"github.com/sydlexius/tributary/internal/event"
	"github.com/sydlexius/tributary/internal/gateway"
	"github.com/sydlexius/tributary/internal/logging"
	"github.com/sydlexius/tributary/internal/provider"
	"github.com/sydlexius/tributary/internal/provider/deezer"
	"github.com/sydlexius/tributary/internal/provider/lastfm"
	"github.com/sydlexius/tributary/internal/provider/musicbrainz"
	"github.com/sydlexius/tributary/internal/provider/slskd"
	"github.com/sydlexius/tributary/internal/reconcile"
	"github.com/sydlexius/tributary/internal/version"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	bus      *event.Bus
	attempts *event.AttemptTally
	registry *provider.Registry
	gateway  *gateway.Gateway
	db       *sql.DB
	closers  []io.Closer
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}
	slog.SetDefault(logger)
	logger.Debug("starting tributary",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("logging", cfg.Logging.String()))

	bus := event.NewBus(logger, 256)
	bus.Subscribe(event.SyncCompleted, event.AuditHandler(logger))
	bus.Subscribe(event.SyncFailed, event.AuditHandler(logger))
	attempts := event.NewAttemptTally()
	bus.Subscribe(event.ProviderAttempt, attempts.Handle)
	go bus.Start()

	limiter := provider.NewRateLimiterMap(cfg.RateLimits())
	registry := provider.NewRegistry()
	for _, name := range cfg.EnabledProviders() {
		registry.Register(newAdapter(name, cfg.Providers[name], limiter, logger))
	}

	gw, err := gateway.New(registry, cfg.Gateway, logger,
		gateway.WithSink(gateway.MultiSink{gateway.NewLogSink(logger), gateway.NewBusSink(bus)}))
	if err != nil {
		bus.Stop()
		logCloser.Close() //nolint:errcheck
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		attempts: attempts,
		registry: registry,
		gateway:  gw,
		closers:  []io.Closer{logCloser},
	}, nil
}

func newAdapter(name provider.ProviderName, pc config.ProviderConfig, limiter *provider.RateLimiterMap, logger *slog.Logger) provider.TrackProvider {
	switch name {
	case provider.NameMusicBrainz:
		if pc.BaseURL != "" {
			return musicbrainz.NewWithBaseURL(limiter, logger, pc.BaseURL)
		}
		return musicbrainz.New(limiter, logger)
	case provider.NameDeezer:
		if pc.BaseURL != "" {
			return deezer.NewWithBaseURL(limiter, logger, pc.BaseURL)
		}
		return deezer.New(limiter, logger)
	case provider.NameLastFM:
		if pc.BaseURL != "" {
			return lastfm.NewWithBaseURL(limiter, pc.APIKey, logger, pc.BaseURL)
		}
		return lastfm.New(limiter, pc.APIKey, logger)
	case provider.NameSlskd:
		return slskd.New(limiter, logger, slskd.Options{
			BaseURL:       pc.BaseURL,
			APIKey:        pc.APIKey,
			SearchTimeout: pc.SearchTimeout(),
		})
	default:
		// config.Validate rejects unknown names before we get here.
		panic(fmt.Sprintf("no adapter for provider %q", name))
	}
}

// openCatalog opens and migrates the database on first use.
func (a *app) openCatalog(ctx context.Context) (*catalog.Service, error) {
	if a.db == nil {
		db, err := database.Open(ctx, a.cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close() //nolint:errcheck
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		a.logger.Debug("database ready", slog.String("path", a.cfg.Database.Path))
		a.db = db
		a.closers = append(a.closers, db)
	}
	return catalog.NewService(a.db), nil
}

func (a *app) syncHandler(ctx context.Context) (*reconcile.Handler, error) {
	store, err := a.openCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.NewHandler(
		gateway.NewArtistGateway(a.gateway, a.logger),
		store,
		a.bus,
		reconcile.Options{
			PreferredSource: a.cfg.Sync.PreferredSource,
			ReleaseLimit:    a.cfg.Sync.ReleaseLimit,
			HardDelete:      a.cfg.Sync.HardDelete,
			Providers:       a.cfg.Sync.Providers,
		},
		a.logger,
	), nil
}

func (a *app) searcher() *reconcile.Searcher {
	return reconcile.NewSearcher(a.gateway, a.registry.Names(), a.logger)
}

// Close drains pending events and logs the attempt summary, then releases
// the database and log file in reverse order of acquisition.
func (a *app) Close() {
	a.bus.Stop()
	select {
	case <-a.bus.Done():
	case <-time.After(2 * time.Second):
		a.logger.Warn("timed out draining event bus")
	}
	a.attempts.Log(a.logger.With(slog.String("component", "gateway")))
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("closing resource", slog.String("error", err.Error()))
		}
	}
}

var _ reconcile.Store = (*catalog.Service)(nil)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
