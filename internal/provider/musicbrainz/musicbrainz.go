package musicbrainz

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

const (
	defaultBaseURL      = "https://musicbrainz.org/ws/2"
	defaultSearchLimit  = 25
	defaultReleaseLimit = 100
	maxBrowseLimit      = 100
)

// Adapter implements provider.TrackProvider for MusicBrainz. MusicBrainz has
// no popularity data, so FetchArtistTopTracks is unsupported.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a MusicBrainz adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a MusicBrainz adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", string(provider.NameMusicBrainz))),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameMusicBrainz }

// SearchTracks searches MusicBrainz recordings.
func (a *Adapter) SearchTracks(ctx context.Context, query string) ([]dto.ProviderTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, provider.NewError(provider.NameMusicBrainz, provider.KindValidation, "empty query")
	}
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {strconv.Itoa(defaultSearchLimit)},
	}
	var resp MBRecordingSearchResponse
	if err := a.getJSON(ctx, "/recording?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	tracks := make([]dto.ProviderTrack, 0, len(resp.Recordings))
	for i := range resp.Recordings {
		t, err := mapRecording(&resp.Recordings[i], nil)
		if err != nil {
			a.logger.Debug("skipping recording", slog.String("id", resp.Recordings[i].ID), slog.String("error", err.Error()))
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// FetchArtist looks an artist up by MBID. With no id, the best-scoring name
// search hit is returned.
func (a *Adapter) FetchArtist(ctx context.Context, id, name string) (*dto.ProviderArtist, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return a.searchArtist(ctx, name)
	}
	params := url.Values{
		"inc": {"aliases+genres+tags"},
		"fmt": {"json"},
	}
	var artist MBArtist
	if err := a.getJSON(ctx, "/artist/"+url.PathEscape(id)+"?"+params.Encode(), &artist); err != nil {
		return nil, err
	}
	out, err := mapArtist(&artist)
	if err != nil {
		return nil, provider.DecodeError(provider.NameMusicBrainz, err)
	}
	return &out, nil
}

func (a *Adapter) searchArtist(ctx context.Context, name string) (*dto.ProviderArtist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, provider.NewError(provider.NameMusicBrainz, provider.KindValidation, "artist id or name required")
	}
	params := url.Values{
		"query": {name},
		"fmt":   {"json"},
		"limit": {"5"},
	}
	var resp SearchResponse
	if err := a.getJSON(ctx, "/artist?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Artists) == 0 {
		return nil, nil
	}
	best := &resp.Artists[0]
	for i := range resp.Artists[1:] {
		if resp.Artists[i+1].Score > best.Score {
			best = &resp.Artists[i+1]
		}
	}
	out, err := mapArtist(best)
	if err != nil {
		return nil, provider.DecodeError(provider.NameMusicBrainz, err)
	}
	return &out, nil
}

// FetchArtistReleases browses the artist's release groups.
func (a *Adapter) FetchArtistReleases(ctx context.Context, artistID string, limit int) ([]dto.ProviderRelease, error) {
	if strings.TrimSpace(artistID) == "" {
		return nil, provider.NewError(provider.NameMusicBrainz, provider.KindValidation, "artist id required")
	}
	if limit <= 0 {
		limit = defaultReleaseLimit
	}
	limit = min(limit, maxBrowseLimit)
	params := url.Values{
		"artist": {artistID},
		"fmt":    {"json"},
		"limit":  {strconv.Itoa(limit)},
	}
	var resp MBReleaseGroupSearchResponse
	if err := a.getJSON(ctx, "/release-group?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	releases := make([]dto.ProviderRelease, 0, len(resp.ReleaseGroups))
	for i := range resp.ReleaseGroups {
		r, err := mapReleaseGroup(&resp.ReleaseGroups[i])
		if err != nil {
			a.logger.Debug("skipping release group", slog.String("id", resp.ReleaseGroups[i].ID), slog.String("error", err.Error()))
			continue
		}
		releases = append(releases, r)
	}
	return releases, nil
}

// FetchAlbum looks up a release with its recordings.
func (a *Adapter) FetchAlbum(ctx context.Context, albumID string) (*dto.AlbumDetails, error) {
	if strings.TrimSpace(albumID) == "" {
		return nil, provider.NewError(provider.NameMusicBrainz, provider.KindValidation, "album id required")
	}
	params := url.Values{
		"inc": {"recordings+artist-credits+release-groups"},
		"fmt": {"json"},
	}
	var rel MBRelease
	if err := a.getJSON(ctx, "/release/"+url.PathEscape(albumID)+"?"+params.Encode(), &rel); err != nil {
		return nil, err
	}
	details, err := mapRelease(&rel)
	if err != nil {
		return nil, provider.DecodeError(provider.NameMusicBrainz, err)
	}
	return details, nil
}

// FetchArtistTopTracks is unsupported.
func (a *Adapter) FetchArtistTopTracks(_ context.Context, _ string, _ int) ([]dto.ProviderTrack, error) {
	return nil, provider.Unsupported(provider.NameMusicBrainz, provider.OpFetchArtistTopTracks)
}

// CheckHealth verifies connectivity to the MusicBrainz API.
func (a *Adapter) CheckHealth(ctx context.Context) provider.Health {
	params := url.Values{
		"query": {"test"},
		"fmt":   {"json"},
		"limit": {"1"},
	}
	start := time.Now()
	var resp SearchResponse
	if err := a.getJSON(ctx, "/artist?"+params.Encode(), &resp); err != nil {
		return provider.Health{Status: provider.HealthDown, Details: map[string]any{"error": err.Error()}}
	}
	return provider.Health{Status: provider.HealthOK, Details: map[string]any{"latency_ms": time.Since(start).Milliseconds()}}
}

func (a *Adapter) getJSON(ctx context.Context, path string, v any) error {
	body, err := provider.Do(ctx, a.client, a.limiter, a.logger, provider.Request{
		Provider: provider.NameMusicBrainz,
		URL:      a.baseURL + path,
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return provider.DecodeError(provider.NameMusicBrainz, err)
	}
	return nil
}

func mapArtist(mb *MBArtist) (dto.ProviderArtist, error) {
	name := normalizeHyphens(mb.Name)
	var aliases []string
	for _, alias := range mb.Aliases {
		if alias.Name != "" && alias.Name != mb.Name {
			aliases = append(aliases, normalizeHyphens(alias.Name))
		}
	}
	var genres []string
	for _, g := range mb.Genres {
		if g.Name != "" {
			genres = append(genres, g.Name)
		}
	}
	// Fall back to tags if no genres
	if len(genres) == 0 {
		for _, t := range mb.Tags {
			if t.Name != "" && t.Count > 0 {
				genres = append(genres, t.Name)
			}
		}
	}
	meta := map[string]any{}
	if mb.Type != "" {
		meta["type"] = strings.ToLower(mb.Type)
	}
	if mb.Country != "" {
		meta["country"] = mb.Country
	}
	if mb.Disambiguation != "" {
		meta["disambiguation"] = mb.Disambiguation
	}
	if mb.LifeSpan.Begin != "" {
		meta["begin"] = mb.LifeSpan.Begin
	}
	return dto.NewArtist(dto.ProviderArtist{
		Source:   string(provider.NameMusicBrainz),
		SourceID: mb.ID,
		Name:     name,
		Aliases:  aliases,
		Genres:   genres,
		Metadata: meta,
	})
}

func mapReleaseGroup(rg *MBReleaseGroup) (dto.ProviderRelease, error) {
	var tags []string
	for _, st := range rg.SecondaryTypes {
		if dto.HasEditionWord(st) {
			tags = append(tags, st)
		}
	}
	meta := map[string]any{}
	if len(rg.SecondaryTypes) > 0 {
		meta["secondary_types"] = rg.SecondaryTypes
	}
	return dto.NewAlbum(dto.ProviderAlbum{
		Source:      string(provider.NameMusicBrainz),
		SourceID:    rg.ID,
		Title:       normalizeHyphens(rg.Title),
		ReleaseDate: rg.FirstReleaseDate,
		Type:        strings.ToLower(rg.PrimaryType),
		Version:     rg.Disambiguation,
		EditionTags: tags,
		Metadata:    meta,
	})
}

func mapRelease(rel *MBRelease) (*dto.AlbumDetails, error) {
	var total int
	for _, m := range rel.Media {
		total += m.TrackCount
	}
	albumType := ""
	if rel.ReleaseGroup != nil {
		albumType = strings.ToLower(rel.ReleaseGroup.PrimaryType)
	}
	meta := map[string]any{}
	if rel.Status != "" {
		meta["status"] = rel.Status
	}
	if rel.Country != "" {
		meta["country"] = rel.Country
	}
	album, err := dto.NewAlbum(dto.ProviderAlbum{
		Source:      string(provider.NameMusicBrainz),
		SourceID:    rel.ID,
		Title:       normalizeHyphens(rel.Title),
		Artists:     creditNames(rel.ArtistCredit),
		ReleaseDate: rel.Date,
		Type:        albumType,
		TotalTracks: dto.Int(total),
		Version:     rel.Disambiguation,
		Metadata:    meta,
	})
	if err != nil {
		return nil, err
	}

	details := &dto.AlbumDetails{Album: album, Tracks: []dto.ProviderTrack{}}
	for _, m := range rel.Media {
		for _, tr := range m.Tracks {
			rec := tr.Recording
			if rec == nil {
				rec = &MBRecording{ID: tr.ID, Title: tr.Title, Length: tr.Length}
			}
			if rec.Title == "" {
				rec.Title = tr.Title
			}
			if len(rec.ArtistCredit) == 0 {
				rec.ArtistCredit = rel.ArtistCredit
			}
			t, err := mapRecording(rec, &album)
			if err != nil {
				return nil, err
			}
			details.Tracks = append(details.Tracks, t)
		}
	}
	return details, nil
}

// mapRecording converts a recording. album, when set, overrides the album
// taken from the recording's first release.
func mapRecording(rec *MBRecording, album *dto.ProviderAlbum) (dto.ProviderTrack, error) {
	t := dto.ProviderTrack{
		Source:   string(provider.NameMusicBrainz),
		SourceID: rec.ID,
		Title:    normalizeHyphens(rec.Title),
		Artists:  creditNames(rec.ArtistCredit),
	}
	if rec.Length > 0 {
		t.DurationMS = dto.Int(rec.Length)
	}
	date := rec.FirstReleaseDate
	switch {
	case album != nil:
		t.Album = album.Title
		if date == "" {
			date = album.ReleaseDate
		}
	case len(rec.Releases) > 0:
		t.Album = normalizeHyphens(rec.Releases[0].Title)
		if date == "" {
			date = rec.Releases[0].Date
		}
	}
	if y := yearOf(date); y > 0 {
		t.Year = dto.Int(y)
	}
	if rec.Score > 0 {
		t.Metadata = map[string]any{"score": rec.Score}
	}
	return dto.NewTrack(t)
}

func creditNames(credits []MBArtistCredit) []string {
	names := make([]string, 0, len(credits))
	for _, c := range credits {
		n := c.Name
		if n == "" {
			n = c.Artist.Name
		}
		if n != "" {
			names = append(names, normalizeHyphens(n))
		}
	}
	return names
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// normalizeHyphens replaces the Unicode hyphens MusicBrainz uses in names
// ("a\u2010ha") with ASCII hyphen-minus. Dashes are left alone.
func normalizeHyphens(s string) string {
	return strings.NewReplacer("\u2010", "-", "\u2011", "-").Replace(s)
}
