// Package reconcile ties the gateway, the matching engine and the delta
// engine to the catalog: it syncs an artist's releases from several
// providers into the store and answers aggregated searches.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sydlexius/tributary/internal/delta"
	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/event"
	"github.com/sydlexius/tributary/internal/gateway"
	"github.com/sydlexius/tributary/internal/provider"
)

// ReasonMissingUpstream marks releases no provider reports any more.
const ReasonMissingUpstream = "missing_upstream"

// ErrAllProvidersFailed is returned by Sync when no provider answered.
// The per-provider errors are joined to it.
var ErrAllProvidersFailed = errors.New("all providers failed")

// Store is the persistence the handler needs. catalog.Service implements it.
type Store interface {
	GetArtist(ctx context.Context, key string) (*dto.ProviderArtist, error)
	GetArtistReleases(ctx context.Context, key string, includeInactive bool) ([]delta.ReleaseSnapshot, error)
	UpsertArtist(ctx context.Context, key string, a dto.ProviderArtist) error
	UpsertReleases(ctx context.Context, key string, releases []dto.ProviderRelease) ([]string, error)
	MarkReleasesInactive(ctx context.Context, ids []string, reason string, hardDelete bool) (int, error)
	ListAliases(ctx context.Context, key string) ([]string, error)
	AddAliases(ctx context.Context, key string, aliases []string) error
	RemoveAliases(ctx context.Context, key string, aliases []string) error
}

// ArtistFetcher fans an artist lookup out to providers.
// gateway.ArtistGateway implements it.
type ArtistFetcher interface {
	FetchArtist(ctx context.Context, artistID string, providers []provider.ProviderName, limit int) *gateway.ArtistResponse
}

// Options configure a Handler.
type Options struct {
	PreferredSource provider.ProviderName
	ReleaseLimit    int
	HardDelete      bool
	Providers       []provider.ProviderName // used when a Request names none
}

// Request identifies the artist to sync. ArtistKey is the catalog key;
// ArtistID is what the providers are asked for.
type Request struct {
	ArtistKey string
	ArtistID  string
	Providers []provider.ProviderName
}

// Report summarizes one sync.
type Report struct {
	ArtistKey       string                           `json:"artist_key"`
	ArtistID        string                           `json:"artist_id"`
	Providers       []provider.ProviderName          `json:"providers"`
	Succeeded       int                              `json:"succeeded"`
	Artist          *dto.ProviderArtist              `json:"artist,omitempty"`
	NewArtist       bool                             `json:"new_artist"`
	ReleasesAdded   int                              `json:"releases_added"`
	ReleasesUpdated int                              `json:"releases_updated"`
	ReleasesRemoved int                              `json:"releases_removed"`
	AliasesAdded    int                              `json:"aliases_added"`
	AliasesRemoved  int                              `json:"aliases_removed"`
	Errors          map[provider.ProviderName]string `json:"errors,omitempty"`
	Retryable       bool                             `json:"retryable"`
	Duration        time.Duration                    `json:"duration"`
}

// Handler runs artist syncs.
type Handler struct {
	fetcher ArtistFetcher
	store   Store
	bus     *event.Bus
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a Handler. bus may be nil.
func NewHandler(fetcher ArtistFetcher, store Store, bus *event.Bus, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		fetcher: fetcher,
		store:   store,
		bus:     bus,
		opts:    opts,
		logger:  logger.With(slog.String("component", "reconcile")),
		now:     time.Now,
	}
}

// Sync fetches the artist from every requested provider, diffs the result
// against the catalog and applies the difference. When no provider succeeds
// nothing is written and the error wraps ErrAllProvidersFailed.
func (h *Handler) Sync(ctx context.Context, req Request) (*Report, error) {
	start := h.now()
	req.ArtistKey = strings.TrimSpace(req.ArtistKey)
	req.ArtistID = strings.TrimSpace(req.ArtistID)
	if req.ArtistKey == "" {
		return nil, &dto.InvalidInputError{Kind: "sync", Field: "artist_key", Message: "is required"}
	}
	if req.ArtistID == "" {
		return nil, &dto.InvalidInputError{Kind: "sync", Field: "artist_id", Message: "is required"}
	}
	providers := req.Providers
	if len(providers) == 0 {
		providers = h.opts.Providers
	}
	if len(providers) == 0 {
		return nil, &dto.InvalidInputError{Kind: "sync", Field: "providers", Message: "must not be empty"}
	}

	logger := h.logger.With(slog.String("artist_key", req.ArtistKey), slog.String("artist_id", req.ArtistID))
	resp := h.fetcher.FetchArtist(ctx, req.ArtistID, providers, h.opts.ReleaseLimit)

	report := &Report{
		ArtistKey: req.ArtistKey,
		ArtistID:  req.ArtistID,
		Providers: providers,
		Succeeded: resp.Succeeded(),
		Retryable: resp.Retryable(),
		Errors:    errorStrings(resp.Errors()),
	}

	if report.Succeeded == 0 {
		errs := []error{ErrAllProvidersFailed}
		for _, res := range resp.Results {
			errs = append(errs, res.Err)
		}
		err := fmt.Errorf("syncing %s: %w", req.ArtistKey, errors.Join(errs...))
		logger.Warn("sync failed, no provider succeeded", slog.Int("providers", len(providers)))
		h.publishFailed(report, "fetch", err)
		return report, err
	}

	if err := h.apply(ctx, req.ArtistKey, resp, report); err != nil {
		err = fmt.Errorf("syncing %s: %w", req.ArtistKey, err)
		logger.Error("applying sync failed", slog.String("error", err.Error()))
		h.publishFailed(report, "persist", err)
		return report, err
	}

	report.Duration = h.now().Sub(start)
	for name, msg := range report.Errors {
		logger.Warn("provider failed during sync", slog.String("provider", string(name)), slog.String("error", msg))
	}
	logger.Info("sync complete",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("releases_added", report.ReleasesAdded),
		slog.Int("releases_updated", report.ReleasesUpdated),
		slog.Int("releases_removed", report.ReleasesRemoved),
		slog.Int("aliases_added", report.AliasesAdded),
		slog.Int("aliases_removed", report.AliasesRemoved))
	h.publishCompleted(report)
	return report, nil
}

func (h *Handler) apply(ctx context.Context, key string, resp *gateway.ArtistResponse, report *Report) error {
	existing, err := h.store.GetArtist(ctx, key)
	if err != nil {
		return fmt.Errorf("loading artist: %w", err)
	}
	localReleases, err := h.store.GetArtistReleases(ctx, key, true)
	if err != nil {
		return fmt.Errorf("loading releases: %w", err)
	}
	localAliases, err := h.store.ListAliases(ctx, key)
	if err != nil {
		return fmt.Errorf("loading aliases: %w", err)
	}

	failed := resp.Errors()
	artist := resp.PreferredArtist(string(h.opts.PreferredSource))
	remote := delta.RemoteState{Releases: resp.Releases()}
	switch {
	case artist == nil:
		// Without any artist record there is nothing to compare aliases to.
		remote.Aliases = localAliases
	case len(failed) > 0:
		// Stored aliases carry no source, so a partial answer can add
		// aliases but never remove them.
		remote.Aliases = append(remoteAliases(resp), localAliases...)
	default:
		remote.Aliases = remoteAliases(resp)
	}
	local := delta.LocalState{Releases: withoutSources(localReleases, failed), Aliases: localAliases}
	d := delta.Determine(local, remote)

	if artist != nil {
		if err := h.store.UpsertArtist(ctx, key, *artist); err != nil {
			return fmt.Errorf("saving artist: %w", err)
		}
		report.Artist = artist
		report.NewArtist = existing == nil
	}

	writes := slices.Clone(d.Releases.Added)
	for _, u := range d.Releases.Updated {
		writes = append(writes, u.After)
	}
	if _, err := h.store.UpsertReleases(ctx, key, writes); err != nil {
		return fmt.Errorf("saving releases: %w", err)
	}

	if len(d.Releases.Removed) > 0 {
		ids := make([]string, len(d.Releases.Removed))
		for i, r := range d.Releases.Removed {
			ids[i] = r.ID
		}
		if _, err := h.store.MarkReleasesInactive(ctx, ids, ReasonMissingUpstream, h.opts.HardDelete); err != nil {
			return fmt.Errorf("retiring releases: %w", err)
		}
	}

	if err := h.store.AddAliases(ctx, key, d.Aliases.Added); err != nil {
		return fmt.Errorf("adding aliases: %w", err)
	}
	if err := h.store.RemoveAliases(ctx, key, d.Aliases.Removed); err != nil {
		return fmt.Errorf("removing aliases: %w", err)
	}

	report.ReleasesAdded = len(d.Releases.Added)
	report.ReleasesUpdated = len(d.Releases.Updated)
	report.ReleasesRemoved = len(d.Releases.Removed)
	report.AliasesAdded = len(d.Aliases.Added)
	report.AliasesRemoved = len(d.Aliases.Removed)
	return nil
}

// remoteAliases is the union of every returned artist's aliases in request
// order. Duplicates are folded by the delta engine.
func remoteAliases(resp *gateway.ArtistResponse) []string {
	var out []string
	for _, res := range resp.Results {
		if res.Artist != nil {
			out = append(out, res.Artist.Aliases...)
		}
	}
	return out
}

// withoutSources drops snapshots owned by a provider that failed, so the
// delta never reads an unreachable provider as an empty catalog.
func withoutSources(releases []delta.ReleaseSnapshot, failed map[provider.ProviderName]error) []delta.ReleaseSnapshot {
	if len(failed) == 0 {
		return releases
	}
	return slices.DeleteFunc(slices.Clone(releases), func(r delta.ReleaseSnapshot) bool {
		for name := range failed {
			if strings.EqualFold(strings.TrimSpace(r.Source), string(name)) {
				return true
			}
		}
		return false
	})
}

func errorStrings(errs map[provider.ProviderName]error) map[provider.ProviderName]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[provider.ProviderName]string, len(errs))
	for name, err := range errs {
		out[name] = err.Error()
	}
	return out
}

func (h *Handler) publishCompleted(r *Report) {
	h.bus.Publish(event.Event{
		Type: event.SyncCompleted,
		Data: map[string]any{
			"artist_key":       r.ArtistKey,
			"artist_id":        r.ArtistID,
			"providers":        providerStrings(r.Providers),
			"succeeded":        r.Succeeded,
			"new_artist":       r.NewArtist,
			"releases_added":   r.ReleasesAdded,
			"releases_updated": r.ReleasesUpdated,
			"releases_removed": r.ReleasesRemoved,
			"aliases_added":    r.AliasesAdded,
			"aliases_removed":  r.AliasesRemoved,
			"errors":           stringKeys(r.Errors),
			"retryable":        r.Retryable,
			"duration_ms":      r.Duration.Milliseconds(),
		},
	})
}

func (h *Handler) publishFailed(r *Report, stage string, err error) {
	h.bus.Publish(event.Event{
		Type: event.SyncFailed,
		Data: map[string]any{
			"artist_key": r.ArtistKey,
			"artist_id":  r.ArtistID,
			"providers":  providerStrings(r.Providers),
			"stage":      stage,
			"error":      err.Error(),
			"errors":     stringKeys(r.Errors),
			"retryable":  r.Retryable,
		},
	})
}

func providerStrings(names []provider.ProviderName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

func stringKeys(m map[provider.ProviderName]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
