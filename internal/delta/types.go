package delta

import (
	"time"

	"github.com/sydlexius/tributary/internal/dto"
)

// ReleaseSnapshot is a persisted release as the store last saw it. The
// engine only reads snapshots.
type ReleaseSnapshot struct {
	ID             string         `json:"id"`
	ArtistKey      string         `json:"artist_key"`
	Source         string         `json:"source"`
	SourceID       string         `json:"source_id,omitempty"`
	Title          string         `json:"title"`
	ReleaseDate    string         `json:"release_date,omitempty"`
	ReleaseType    string         `json:"release_type,omitempty"`
	TotalTracks    *int           `json:"total_tracks,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Version        string         `json:"version,omitempty"`
	ETag           string         `json:"etag,omitempty"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
	InactiveAt     *time.Time     `json:"inactive_at,omitempty"`
	InactiveReason string         `json:"inactive_reason,omitempty"`
}

// Active reports whether the release has not been marked inactive.
func (s ReleaseSnapshot) Active() bool {
	return s.InactiveAt == nil
}

// LocalState is what the store currently holds for one artist, inactive
// releases included.
type LocalState struct {
	Releases []ReleaseSnapshot
	Aliases  []string
}

// RemoteState is the freshly fetched view of the same artist.
type RemoteState struct {
	Releases []dto.ProviderRelease
	Aliases  []string
}

// UpdatedRelease pairs a stored release with the remote release that
// replaces it.
type UpdatedRelease struct {
	Before ReleaseSnapshot     `json:"before"`
	After  dto.ProviderRelease `json:"after"`
}

// ReleaseDelta is the release part of a Result.
type ReleaseDelta struct {
	Added   []dto.ProviderRelease `json:"added"`
	Updated []UpdatedRelease      `json:"updated"`
	Removed []ReleaseSnapshot     `json:"removed"`
}

// AliasDelta is the alias part of a Result.
type AliasDelta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Result is the minimal change set that turns LocalState into RemoteState.
type Result struct {
	Releases ReleaseDelta `json:"releases"`
	Aliases  AliasDelta   `json:"aliases"`
}

// Empty reports whether applying r would change nothing.
func (r Result) Empty() bool {
	return len(r.Releases.Added) == 0 &&
		len(r.Releases.Updated) == 0 &&
		len(r.Releases.Removed) == 0 &&
		len(r.Aliases.Added) == 0 &&
		len(r.Aliases.Removed) == 0
}
