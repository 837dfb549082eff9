// Package dto holds the normalized, provider-independent records that flow
// between the gateway, the matching engine and the delta engine.
//
// Values are built through the New* constructors, which copy their input,
// normalize it and reject malformed records. Nothing in this module mutates a
// DTO after construction, so values can be shared across goroutines.
package dto

import (
	"maps"
	"slices"
	"strings"
)

// ProviderArtist is an artist as reported by one provider.
type ProviderArtist struct {
	Source     string         `json:"source"`
	SourceID   string         `json:"source_id,omitempty"`
	Name       string         `json:"name"`
	Aliases    []string       `json:"aliases,omitempty"`
	Genres     []string       `json:"genres,omitempty"`
	Images     []string       `json:"images,omitempty"`
	Popularity *int           `json:"popularity,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ProviderAlbum is a release (album, single, EP, ...) as reported by one provider.
type ProviderAlbum struct {
	Source      string         `json:"source"`
	SourceID    string         `json:"source_id,omitempty"`
	Title       string         `json:"title"`
	Artists     []string       `json:"artists,omitempty"`
	ReleaseDate string         `json:"release_date,omitempty"`
	Type        string         `json:"type,omitempty"`
	TotalTracks *int           `json:"total_tracks,omitempty"`
	Version     string         `json:"version,omitempty"`
	EditionTags []string       `json:"edition_tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ProviderRelease is the name the reconciliation code uses for albums.
type ProviderRelease = ProviderAlbum

// ProviderTrack is a track as reported by one provider. Download-oriented
// providers attach their concrete downloadable files as Candidates.
type ProviderTrack struct {
	Source      string           `json:"source"`
	SourceID    string           `json:"source_id,omitempty"`
	Title       string           `json:"title"`
	Artists     []string         `json:"artists,omitempty"`
	Album       string           `json:"album,omitempty"`
	DurationMS  *int             `json:"duration_ms,omitempty"`
	Popularity  *int             `json:"popularity,omitempty"`
	Year        *int             `json:"year,omitempty"`
	EditionTags []string         `json:"edition_tags,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	Candidates  []TrackCandidate `json:"candidates,omitempty"`
}

// TrackCandidate is one downloadable rendition of a track.
type TrackCandidate struct {
	Title        string         `json:"title"`
	Artist       string         `json:"artist,omitempty"`
	Format       string         `json:"format,omitempty"`
	BitrateKbps  *int           `json:"bitrate_kbps,omitempty"`
	SizeBytes    *int64         `json:"size_bytes,omitempty"`
	Seeders      *int           `json:"seeders,omitempty"`
	Username     string         `json:"username,omitempty"`
	Availability *float64       `json:"availability,omitempty"`
	Source       string         `json:"source"`
	DownloadURI  string         `json:"download_uri,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AlbumDetails is an album together with its track listing.
type AlbumDetails struct {
	Album  ProviderAlbum   `json:"album"`
	Tracks []ProviderTrack `json:"tracks"`
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// NewArtist validates and normalizes an artist record.
func NewArtist(a ProviderArtist) (ProviderArtist, error) {
	a.Source = strings.TrimSpace(a.Source)
	a.SourceID = strings.TrimSpace(a.SourceID)
	a.Name = strings.TrimSpace(a.Name)
	if a.Source == "" {
		return ProviderArtist{}, invalid("artist", "source", "is required")
	}
	if a.Name == "" {
		return ProviderArtist{}, invalid("artist", "name", "must not be empty")
	}
	if a.Popularity != nil && *a.Popularity < 0 {
		return ProviderArtist{}, invalid("artist", "popularity", "must not be negative")
	}
	a.Aliases = dedupeFold(a.Aliases)
	a.Genres = dedupeFold(a.Genres)
	a.Images = slices.Clone(a.Images)
	a.Popularity = cloneInt(a.Popularity)
	a.Metadata = maps.Clone(a.Metadata)
	return a, nil
}

// NewAlbum validates and normalizes a release record. Edition tags are
// recomputed from the title and version text plus any explicit tags.
func NewAlbum(a ProviderAlbum) (ProviderAlbum, error) {
	a.Source = strings.TrimSpace(a.Source)
	a.SourceID = strings.TrimSpace(a.SourceID)
	a.Title = strings.TrimSpace(a.Title)
	a.ReleaseDate = strings.TrimSpace(a.ReleaseDate)
	a.Type = strings.TrimSpace(a.Type)
	a.Version = strings.TrimSpace(a.Version)
	if a.Source == "" {
		return ProviderAlbum{}, invalid("album", "source", "is required")
	}
	if a.Title == "" {
		return ProviderAlbum{}, invalid("album", "title", "must not be empty")
	}
	if a.TotalTracks != nil && *a.TotalTracks < 0 {
		return ProviderAlbum{}, invalid("album", "total_tracks", "must not be negative")
	}
	a.Artists = trimAll(a.Artists)
	a.TotalTracks = cloneInt(a.TotalTracks)
	a.EditionTags = ExtractEditionTags(a.Title+" "+a.Version, a.EditionTags...)
	a.Metadata = maps.Clone(a.Metadata)
	return a, nil
}

// NewTrack validates and normalizes a track record, including its candidates.
// A non-positive year is treated as absent.
func NewTrack(t ProviderTrack) (ProviderTrack, error) {
	t.Source = strings.TrimSpace(t.Source)
	t.SourceID = strings.TrimSpace(t.SourceID)
	t.Title = strings.TrimSpace(t.Title)
	t.Album = strings.TrimSpace(t.Album)
	if t.Year != nil && *t.Year <= 0 {
		t.Year = nil
	}
	if err := ValidateTrack(t); err != nil {
		return ProviderTrack{}, err
	}
	t.Artists = trimAll(t.Artists)
	t.DurationMS = cloneInt(t.DurationMS)
	t.Popularity = cloneInt(t.Popularity)
	t.Year = cloneInt(t.Year)
	t.EditionTags = ExtractEditionTags(t.Title, t.EditionTags...)
	t.Metadata = maps.Clone(t.Metadata)
	if len(t.Candidates) > 0 {
		cands := make([]TrackCandidate, 0, len(t.Candidates))
		for _, c := range t.Candidates {
			nc, err := NewCandidate(c)
			if err != nil {
				return ProviderTrack{}, err
			}
			cands = append(cands, nc)
		}
		t.Candidates = cands
	}
	return t, nil
}

// ValidateTrack checks the track invariants without normalizing. It is used
// by consumers that receive tracks built outside NewTrack.
func ValidateTrack(t ProviderTrack) error {
	if strings.TrimSpace(t.Source) == "" {
		return invalid("track", "source", "is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return invalid("track", "title", "must not be empty")
	}
	if t.DurationMS != nil && *t.DurationMS < 0 {
		return invalid("track", "duration_ms", "must not be negative")
	}
	if t.Popularity != nil && *t.Popularity < 0 {
		return invalid("track", "popularity", "must not be negative")
	}
	if t.Year != nil && *t.Year < 0 {
		return invalid("track", "year", "must not be negative")
	}
	for _, c := range t.Candidates {
		if err := validateCandidate(c); err != nil {
			return err
		}
	}
	return nil
}

// NewCandidate validates and normalizes a download candidate.
func NewCandidate(c TrackCandidate) (TrackCandidate, error) {
	c.Title = strings.TrimSpace(c.Title)
	c.Artist = strings.TrimSpace(c.Artist)
	c.Source = strings.TrimSpace(c.Source)
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if err := validateCandidate(c); err != nil {
		return TrackCandidate{}, err
	}
	c.BitrateKbps = cloneInt(c.BitrateKbps)
	c.Seeders = cloneInt(c.Seeders)
	if c.SizeBytes != nil {
		c.SizeBytes = Int64(*c.SizeBytes)
	}
	if c.Availability != nil {
		c.Availability = Float(*c.Availability)
	}
	c.Metadata = maps.Clone(c.Metadata)
	return c, nil
}

func validateCandidate(c TrackCandidate) error {
	if strings.TrimSpace(c.Source) == "" {
		return invalid("candidate", "source", "is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return invalid("candidate", "title", "must not be empty")
	}
	if c.BitrateKbps != nil && *c.BitrateKbps < 0 {
		return invalid("candidate", "bitrate_kbps", "must not be negative")
	}
	if c.SizeBytes != nil && *c.SizeBytes < 0 {
		return invalid("candidate", "size_bytes", "must not be negative")
	}
	if c.Seeders != nil && *c.Seeders < 0 {
		return invalid("candidate", "seeders", "must not be negative")
	}
	if c.Availability != nil && *c.Availability < 0 {
		return invalid("candidate", "availability", "must not be negative")
	}
	return nil
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	return Int(*p)
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
