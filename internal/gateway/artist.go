package gateway

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

// ArtistResult is one provider's answer for an artist: either the artist and
// its releases, or the error that stopped the fetch.
type ArtistResult struct {
	Provider  provider.ProviderName
	Artist    *dto.ProviderArtist
	Releases  []dto.ProviderRelease
	Err       error
	Retryable bool

	// completed is the zero-based position in which this provider's task
	// finished relative to the others.
	completed int
}

// ArtistResponse collects every provider's ArtistResult for one artist id.
// Results are in request order.
type ArtistResponse struct {
	ArtistID string
	Results  []ArtistResult
}

// Releases returns the union of all results' releases, deduplicated by
// source id (source:title when the id is absent). Results are merged in the
// order their tasks completed, so the last provider to finish wins a
// duplicate key; each key keeps the position where it was first seen.
func (r *ArtistResponse) Releases() []dto.ProviderRelease {
	ordered := make([]*ArtistResult, len(r.Results))
	for i := range r.Results {
		ordered[i] = &r.Results[i]
	}
	slices.SortStableFunc(ordered, func(a, b *ArtistResult) int {
		return cmp.Compare(a.completed, b.completed)
	})

	index := make(map[string]int)
	var out []dto.ProviderRelease
	for _, res := range ordered {
		for _, rel := range res.Releases {
			key := releaseKey(rel)
			if i, ok := index[key]; ok {
				out[i] = rel
				continue
			}
			index[key] = len(out)
			out = append(out, rel)
		}
	}
	return out
}

func releaseKey(r dto.ProviderRelease) string {
	if r.SourceID != "" {
		return r.SourceID
	}
	return r.Source + ":" + r.Title
}

// Errors returns provider -> error for every failed result.
func (r *ArtistResponse) Errors() map[provider.ProviderName]error {
	errs := make(map[provider.ProviderName]error)
	for _, res := range r.Results {
		if res.Err != nil {
			errs[res.Provider] = res.Err
		}
	}
	return errs
}

// Retryable reports whether any failed result failed transiently.
func (r *ArtistResponse) Retryable() bool {
	for _, res := range r.Results {
		if res.Err != nil && res.Retryable {
			return true
		}
	}
	return false
}

// Succeeded counts results without an error.
func (r *ArtistResponse) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// PreferredArtist picks the artist record to keep: the first non-nil artist
// whose source matches preferredSource (case-insensitively), otherwise the
// first non-nil artist in request order. It returns nil when no provider
// returned an artist.
func (r *ArtistResponse) PreferredArtist(preferredSource string) *dto.ProviderArtist {
	var first *dto.ProviderArtist
	for _, res := range r.Results {
		if res.Artist == nil {
			continue
		}
		if preferredSource != "" && strings.EqualFold(res.Artist.Source, preferredSource) {
			return res.Artist
		}
		if first == nil {
			first = res.Artist
		}
	}
	return first
}

// ArtistGateway fetches one artist and its releases from several providers
// at once.
type ArtistGateway struct {
	gw     *Gateway
	logger *slog.Logger
}

// NewArtistGateway creates an ArtistGateway over gw.
func NewArtistGateway(gw *Gateway, logger *slog.Logger) *ArtistGateway {
	return &ArtistGateway{
		gw:     gw,
		logger: logger.With(slog.String("component", "artist-gateway")),
	}
}

// FetchArtist queries every provider concurrently for artistID and its
// releases. Per-provider failures are captured in the results, never
// returned. An empty provider list yields an empty response.
func (a *ArtistGateway) FetchArtist(ctx context.Context, artistID string, providers []provider.ProviderName, limit int) *ArtistResponse {
	resp := &ArtistResponse{ArtistID: artistID}
	if len(providers) == 0 {
		return resp
	}

	results := make([]ArtistResult, len(providers))
	finished := make(chan int, len(providers))
	var eg errgroup.Group
	for i, name := range providers {
		eg.Go(func() error {
			results[i] = a.fetchOne(ctx, name, artistID, limit)
			finished <- i
			return nil
		})
	}
	_ = eg.Wait()
	close(finished)

	rank := 0
	for i := range finished {
		results[i].completed = rank
		rank++
	}
	resp.Results = results

	a.logger.Debug("artist fan-out complete",
		slog.String("artist_id", artistID),
		slog.Int("providers", len(providers)),
		slog.Int("succeeded", resp.Succeeded()))
	return resp
}

func (a *ArtistGateway) fetchOne(ctx context.Context, name provider.ProviderName, artistID string, limit int) ArtistResult {
	artist, err := a.gw.FetchArtist(ctx, name, artistID, "")
	if err != nil {
		return failed(name, err)
	}

	releaseID := artistID
	if artist != nil && artist.SourceID != "" {
		releaseID = artist.SourceID
	}
	releases, err := a.gw.FetchArtistReleases(ctx, name, releaseID, limit)
	if err != nil {
		return failed(name, err)
	}
	return ArtistResult{Provider: name, Artist: artist, Releases: releases}
}

func failed(name provider.ProviderName, err error) ArtistResult {
	return ArtistResult{
		Provider:  name,
		Releases:  []dto.ProviderRelease{},
		Err:       err,
		Retryable: IsRetryable(err),
	}
}
