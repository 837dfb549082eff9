package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

const (
	defaultBaseURL = "https://api.deezer.com"
	defaultLimit   = 25
)

// Deezer in-body error codes.
const (
	codeQuota        = 4
	codeDataNotFound = 800
)

// Adapter implements provider.TrackProvider for Deezer's public API.
// No authentication is required.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a Deezer adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Deezer adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", string(provider.NameDeezer))),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider identifier.
func (a *Adapter) Name() provider.ProviderName { return provider.NameDeezer }

// SearchTracks runs a Deezer track search.
func (a *Adapter) SearchTracks(ctx context.Context, query string) ([]dto.ProviderTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, provider.NewError(provider.NameDeezer, provider.KindValidation, "empty query")
	}
	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(defaultLimit)},
	}
	var resp trackList
	if err := a.getJSON(ctx, "/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	tracks := a.mapTracks(resp.Data, "")

	a.logger.Debug("track search completed",
		slog.String("query", query),
		slog.Int("results", len(tracks)))

	return tracks, nil
}

// FetchArtist fetches an artist by Deezer ID (numeric string). With no id the
// first name search hit is returned. Non-numeric IDs such as MusicBrainz UUIDs
// are reported as not found without a request, since Deezer does not index
// by MBID.
func (a *Adapter) FetchArtist(ctx context.Context, id, name string) (*dto.ProviderArtist, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return a.searchArtist(ctx, name)
	}
	if !isDeezerID(id) {
		return nil, provider.NewError(provider.NameDeezer, provider.KindNotFound, "artist %s is not a deezer id", id)
	}
	var result artistResult
	if err := a.getJSON(ctx, "/artist/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	artist, err := mapArtist(&result)
	if err != nil {
		return nil, provider.DecodeError(provider.NameDeezer, err)
	}
	return &artist, nil
}

func (a *Adapter) searchArtist(ctx context.Context, name string) (*dto.ProviderArtist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, provider.NewError(provider.NameDeezer, provider.KindValidation, "artist id or name required")
	}
	params := url.Values{
		"q":     {name},
		"limit": {"1"},
	}
	var resp artistSearchResponse
	if err := a.getJSON(ctx, "/search/artist?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	artist, err := mapArtist(&resp.Data[0])
	if err != nil {
		return nil, provider.DecodeError(provider.NameDeezer, err)
	}
	return &artist, nil
}

// FetchArtistReleases lists the artist's albums, singles and EPs.
func (a *Adapter) FetchArtistReleases(ctx context.Context, artistID string, limit int) ([]dto.ProviderRelease, error) {
	if !isDeezerID(artistID) {
		return nil, provider.NewError(provider.NameDeezer, provider.KindNotFound, "artist %s is not a deezer id", artistID)
	}
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	var resp albumList
	if err := a.getJSON(ctx, "/artist/"+url.PathEscape(artistID)+"/albums?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	releases := make([]dto.ProviderRelease, 0, len(resp.Data))
	for i := range resp.Data {
		r, err := mapAlbum(&resp.Data[i])
		if err != nil {
			a.logger.Debug("skipping album", slog.Int("id", resp.Data[i].ID), slog.String("error", err.Error()))
			continue
		}
		releases = append(releases, r)
	}
	return releases, nil
}

// FetchAlbum fetches an album with its track listing.
func (a *Adapter) FetchAlbum(ctx context.Context, albumID string) (*dto.AlbumDetails, error) {
	if !isDeezerID(albumID) {
		return nil, provider.NewError(provider.NameDeezer, provider.KindNotFound, "album %s is not a deezer id", albumID)
	}
	var result albumResult
	if err := a.getJSON(ctx, "/album/"+url.PathEscape(albumID), &result); err != nil {
		return nil, err
	}
	album, err := mapAlbum(&result)
	if err != nil {
		return nil, provider.DecodeError(provider.NameDeezer, err)
	}
	details := &dto.AlbumDetails{Album: album, Tracks: []dto.ProviderTrack{}}
	if result.Tracks != nil {
		details.Tracks = a.mapTracks(result.Tracks.Data, album.Title)
	}
	return details, nil
}

// FetchArtistTopTracks returns the artist's most popular tracks.
func (a *Adapter) FetchArtistTopTracks(ctx context.Context, artistID string, limit int) ([]dto.ProviderTrack, error) {
	if !isDeezerID(artistID) {
		return nil, provider.NewError(provider.NameDeezer, provider.KindNotFound, "artist %s is not a deezer id", artistID)
	}
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	var resp trackList
	if err := a.getJSON(ctx, "/artist/"+url.PathEscape(artistID)+"/top?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return a.mapTracks(resp.Data, ""), nil
}

// CheckHealth probes the public API with a trivial search.
func (a *Adapter) CheckHealth(ctx context.Context) provider.Health {
	start := time.Now()
	var resp artistSearchResponse
	if err := a.getJSON(ctx, "/search/artist?q=test&limit=1", &resp); err != nil {
		return provider.Health{Status: provider.HealthDown, Details: map[string]any{"error": err.Error()}}
	}
	return provider.Health{Status: provider.HealthOK, Details: map[string]any{"latency_ms": time.Since(start).Milliseconds()}}
}

// getJSON performs the request and decodes v, translating Deezer's in-body
// errors (returned with HTTP 200) into provider errors.
func (a *Adapter) getJSON(ctx context.Context, path string, v any) error {
	body, err := provider.Do(ctx, a.client, a.limiter, a.logger, provider.Request{
		Provider: provider.NameDeezer,
		URL:      a.baseURL + path,
	})
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return provider.DecodeError(provider.NameDeezer, err)
	}
	if env.Error != nil {
		return mapAPIError(env.Error)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return provider.DecodeError(provider.NameDeezer, err)
	}
	return nil
}

func mapAPIError(e *apiError) *provider.Error {
	kind := provider.KindDependency
	switch e.Code {
	case codeDataNotFound:
		kind = provider.KindNotFound
	case codeQuota:
		kind = provider.KindRateLimited
	}
	return &provider.Error{
		Kind:     kind,
		Provider: provider.NameDeezer,
		Cause:    fmt.Errorf("%s (code %d): %s", e.Type, e.Code, e.Message),
	}
}

func (a *Adapter) mapTracks(in []trackResult, album string) []dto.ProviderTrack {
	tracks := make([]dto.ProviderTrack, 0, len(in))
	for i := range in {
		t, err := mapTrack(&in[i], album)
		if err != nil {
			a.logger.Debug("skipping track", slog.Int("id", in[i].ID), slog.String("error", err.Error()))
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}

func mapArtist(r *artistResult) (dto.ProviderArtist, error) {
	a := dto.ProviderArtist{
		Source:   string(provider.NameDeezer),
		SourceID: strconv.Itoa(r.ID),
		Name:     r.Name,
	}
	if img := pictureURL(r); img != "" {
		a.Images = []string{img}
	}
	if r.NbFan > 0 {
		a.Popularity = dto.Int(r.NbFan)
	}
	if r.Link != "" {
		a.Metadata = map[string]any{"link": r.Link}
	}
	return dto.NewArtist(a)
}

func mapAlbum(r *albumResult) (dto.ProviderRelease, error) {
	album := dto.ProviderAlbum{
		Source:      string(provider.NameDeezer),
		SourceID:    strconv.Itoa(r.ID),
		Title:       r.Title,
		ReleaseDate: r.ReleaseDate,
		Type:        mapRecordType(r.RecordType),
	}
	if r.Artist.Name != "" {
		album.Artists = []string{r.Artist.Name}
	}
	if r.NbTracks > 0 {
		album.TotalTracks = dto.Int(r.NbTracks)
	}
	meta := map[string]any{}
	if r.Label != "" {
		meta["label"] = r.Label
	}
	if r.UPC != "" {
		meta["upc"] = r.UPC
	}
	if r.Explicit {
		meta["explicit"] = true
	}
	if r.Genres != nil {
		var genres []string
		for _, g := range r.Genres.Data {
			genres = append(genres, g.Name)
		}
		if len(genres) > 0 {
			meta["genres"] = genres
		}
	}
	if len(meta) > 0 {
		album.Metadata = meta
	}
	return dto.NewAlbum(album)
}

func mapTrack(r *trackResult, album string) (dto.ProviderTrack, error) {
	title := r.Title
	if title == "" {
		title = strings.TrimSpace(r.TitleShort + " " + r.TitleVersion)
	}
	t := dto.ProviderTrack{
		Source:   string(provider.NameDeezer),
		SourceID: strconv.Itoa(r.ID),
		Title:    title,
		Album:    r.Album.Title,
	}
	if album != "" {
		t.Album = album
	}
	if r.Artist.Name != "" {
		t.Artists = []string{r.Artist.Name}
	}
	if r.Duration > 0 {
		t.DurationMS = dto.Int(r.Duration * 1000)
	}
	if r.Rank > 0 {
		t.Popularity = dto.Int(r.Rank)
	}
	if len(r.ReleaseDate) >= 4 {
		if y, err := strconv.Atoi(r.ReleaseDate[:4]); err == nil {
			t.Year = dto.Int(y)
		}
	}
	if r.ExplicitLyrics {
		t.Metadata = map[string]any{"explicit": true}
	}
	return dto.NewTrack(t)
}

// mapRecordType normalizes Deezer's record_type ("compile" is Deezer's name
// for compilations).
func mapRecordType(rt string) string {
	switch rt = strings.ToLower(rt); rt {
	case "compile":
		return "compilation"
	default:
		return rt
	}
}

// isDeezerID reports whether id is a valid Deezer ID (all digits).
func isDeezerID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// pictureURL prefers the XL picture and skips Deezer's generic placeholder.
func pictureURL(r *artistResult) string {
	for _, u := range []string{r.PictureXL, r.PictureBig, r.Picture} {
		if u != "" && !isDefaultPicture(u) {
			return u
		}
	}
	return ""
}

// isDefaultPicture reports whether a Deezer picture URL is the generic placeholder.
// Deezer returns URLs containing "/images/artist//" (double slash) for artists
// without a photo.
func isDefaultPicture(u string) bool {
	return strings.Contains(u, "/images/artist//")
}
