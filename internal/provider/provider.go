package provider

import (
	"context"

	"github.com/sydlexius/tributary/internal/dto"
)

// AccessTier classifies a provider's access model.
type AccessTier string

// Access tier constants for classifying a provider's access model.
const (
	TierFree     AccessTier = "free"     // No key, no limit known
	TierFreeKey  AccessTier = "free_key" // Free account/sign-up required
	TierSelfHost AccessTier = "self_hosted"
)

// RateLimitInfo documents the known rate limits for a provider.
type RateLimitInfo struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	RequestsPerDay    int     `json:"requests_per_day,omitempty"` // 0 = unknown/unlimited
}

// ProviderCapability describes a provider's access model, documented rate
// limits and which operations it can serve.
type ProviderCapability struct {
	Tier       AccessTier     `json:"tier"`
	HelpURL    string         `json:"help_url,omitempty"`
	RateLimit  *RateLimitInfo `json:"rate_limit,omitempty"`
	Operations []Operation    `json:"operations"`
}

// ProviderCapabilities returns the known capability metadata for each provider.
func ProviderCapabilities() map[ProviderName]ProviderCapability {
	return map[ProviderName]ProviderCapability{
		NameMusicBrainz: {
			Tier:       TierFree,
			RateLimit:  &RateLimitInfo{RequestsPerSecond: 1},
			Operations: []Operation{OpSearch, OpFetchArtist, OpFetchArtistReleases, OpFetchAlbum},
		},
		NameDeezer: {
			Tier:       TierFree,
			RateLimit:  &RateLimitInfo{RequestsPerSecond: 5},
			Operations: []Operation{OpSearch, OpFetchArtist, OpFetchArtistReleases, OpFetchAlbum, OpFetchArtistTopTracks},
		},
		NameLastFM: {
			Tier:       TierFreeKey,
			HelpURL:    "https://www.last.fm/api/account/create",
			RateLimit:  &RateLimitInfo{RequestsPerSecond: 5},
			Operations: []Operation{OpSearch, OpFetchArtist, OpFetchArtistReleases, OpFetchAlbum, OpFetchArtistTopTracks},
		},
		NameSlskd: {
			Tier:       TierSelfHost,
			RateLimit:  &RateLimitInfo{RequestsPerSecond: 2},
			Operations: []Operation{OpSearch},
		},
	}
}

// ProviderName uniquely identifies a metadata or content provider.
type ProviderName string

// Known provider names.
const (
	NameMusicBrainz ProviderName = "musicbrainz"
	NameDeezer      ProviderName = "deezer"
	NameLastFM      ProviderName = "lastfm"
	NameSlskd       ProviderName = "slskd"
)

// AllProviderNames returns all known provider names in display order.
func AllProviderNames() []ProviderName {
	return []ProviderName{
		NameMusicBrainz,
		NameDeezer,
		NameLastFM,
		NameSlskd,
	}
}

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameDeezer:
		return "Deezer"
	case NameLastFM:
		return "Last.fm"
	case NameSlskd:
		return "slskd"
	default:
		return string(n)
	}
}

// Operation names a provider call. It labels log events and errors.
type Operation string

// Provider operations.
const (
	OpSearch               Operation = "search"
	OpFetchArtist          Operation = "fetch_artist"
	OpFetchArtistReleases  Operation = "fetch_artist_releases"
	OpFetchAlbum           Operation = "fetch_album"
	OpFetchArtistTopTracks Operation = "fetch_artist_top_tracks"
	OpCheckHealth          Operation = "check_health"
)

// Health status values.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
	HealthDown     = "down"
)

// Health is the result of a provider health probe.
type Health struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// TrackProvider is the contract every provider adapter implements. Each
// failing call returns a *Error carrying exactly one ErrorKind.
type TrackProvider interface {
	// Name returns the unique provider identifier.
	Name() ProviderName

	// SearchTracks runs a free-text track search.
	SearchTracks(ctx context.Context, query string) ([]dto.ProviderTrack, error)

	// FetchArtist looks an artist up by provider ID, or by name when id is
	// empty. A nil artist with a nil error means the provider has no match.
	FetchArtist(ctx context.Context, id, name string) (*dto.ProviderArtist, error)

	// FetchArtistReleases lists an artist's releases. limit <= 0 means the
	// provider default.
	FetchArtistReleases(ctx context.Context, artistID string, limit int) ([]dto.ProviderRelease, error)

	// FetchAlbum returns one album and its tracks.
	FetchAlbum(ctx context.Context, albumID string) (*dto.AlbumDetails, error)

	// FetchArtistTopTracks returns the artist's most popular tracks.
	FetchArtistTopTracks(ctx context.Context, artistID string, limit int) ([]dto.ProviderTrack, error)

	// CheckHealth probes the provider.
	CheckHealth(ctx context.Context) Health
}
