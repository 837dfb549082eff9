package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// Last.fm in-body error codes.
const (
	codeInvalidParameters = 6 // also "not found" for lookups
	codeInvalidAPIKey     = 10
	codeServiceOffline    = 11
	codeTemporaryError    = 16
	codeSuspendedAPIKey   = 26
	codeRateLimitExceeded = 29
)

// Adapter implements provider.TrackProvider for Last.fm. Every call requires
// an API key.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	apiKey  string
	logger  *slog.Logger
	baseURL string
}

// New creates a Last.fm adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, apiKey string, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, apiKey, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Last.fm adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, apiKey string, logger *slog.Logger, baseURL string) *Adapter {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		apiKey:  strings.TrimSpace(apiKey),
		logger:  logger.With(slog.String("provider", string(provider.NameLastFM))),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameLastFM }

// SearchTracks runs track.search.
func (a *Adapter) SearchTracks(ctx context.Context, query string) ([]dto.ProviderTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, provider.NewError(provider.NameLastFM, provider.KindValidation, "empty query")
	}
	var resp TrackSearchResponse
	if err := a.call(ctx, "track.search", url.Values{"track": {query}, "limit": {"25"}}, &resp); err != nil {
		return nil, err
	}

	tracks := make([]dto.ProviderTrack, 0, len(resp.Results.TrackMatches.Track))
	for _, st := range resp.Results.TrackMatches.Track {
		t := dto.ProviderTrack{
			Source:   string(provider.NameLastFM),
			SourceID: st.MBID,
			Title:    st.Name,
		}
		if st.Artist != "" {
			t.Artists = []string{st.Artist}
		}
		if n := atoi(st.Listeners); n > 0 {
			t.Popularity = dto.Int(n)
		}
		if st.URL != "" {
			t.Metadata = map[string]any{"url": st.URL}
		}
		nt, err := dto.NewTrack(t)
		if err != nil {
			a.logger.Debug("skipping track", slog.String("name", st.Name), slog.String("error", err.Error()))
			continue
		}
		tracks = append(tracks, nt)
	}
	return tracks, nil
}

// FetchArtist runs artist.getinfo. An id that looks like an MBID is sent as
// mbid; any other id, or the name when id is empty, is sent as the artist name.
func (a *Adapter) FetchArtist(ctx context.Context, id, name string) (*dto.ProviderArtist, error) {
	params, err := artistParams(id, name)
	if err != nil {
		return nil, err
	}
	var resp InfoResponse
	if err := a.call(ctx, "artist.getinfo", params, &resp); err != nil {
		if isNotFound(err) && strings.TrimSpace(id) == "" {
			return nil, nil
		}
		return nil, err
	}
	if resp.Artist.Name == "" {
		return nil, provider.NewError(provider.NameLastFM, provider.KindNotFound, "artist %s not found", firstNonEmpty(id, name))
	}
	artist, err := mapArtist(&resp.Artist)
	if err != nil {
		return nil, provider.DecodeError(provider.NameLastFM, err)
	}
	return &artist, nil
}

// FetchArtistReleases runs artist.gettopalbums. Last.fm carries no release
// dates or types on this endpoint.
func (a *Adapter) FetchArtistReleases(ctx context.Context, artistID string, limit int) ([]dto.ProviderRelease, error) {
	params, err := artistParams(artistID, "")
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	params.Set("limit", strconv.Itoa(limit))
	var resp TopAlbumsResponse
	if err := a.call(ctx, "artist.gettopalbums", params, &resp); err != nil {
		return nil, err
	}

	releases := make([]dto.ProviderRelease, 0, len(resp.TopAlbums.Album))
	for _, ta := range resp.TopAlbums.Album {
		if ta.Name == "(null)" {
			continue
		}
		r := dto.ProviderAlbum{
			Source:   string(provider.NameLastFM),
			SourceID: ta.MBID,
			Title:    ta.Name,
		}
		if ta.Artist.Name != "" {
			r.Artists = []string{ta.Artist.Name}
		}
		if ta.Playcount > 0 {
			r.Metadata = map[string]any{"playcount": int(ta.Playcount)}
		}
		nr, err := dto.NewAlbum(r)
		if err != nil {
			a.logger.Debug("skipping album", slog.String("name", ta.Name), slog.String("error", err.Error()))
			continue
		}
		releases = append(releases, nr)
	}
	return releases, nil
}

// FetchAlbum runs album.getinfo. Last.fm only resolves albums by MBID here.
func (a *Adapter) FetchAlbum(ctx context.Context, albumID string) (*dto.AlbumDetails, error) {
	if !isUUID(albumID) {
		return nil, provider.NewError(provider.NameLastFM, provider.KindNotFound, "album %s is not an mbid", albumID)
	}
	var resp AlbumInfoResponse
	if err := a.call(ctx, "album.getinfo", url.Values{"mbid": {albumID}}, &resp); err != nil {
		return nil, err
	}
	info := resp.Album

	album := dto.ProviderAlbum{
		Source:      string(provider.NameLastFM),
		SourceID:    firstNonEmpty(info.MBID, albumID),
		Title:       info.Name,
		TotalTracks: dto.Int(len(info.Tracks.Track)),
	}
	if info.Artist != "" {
		album.Artists = []string{info.Artist}
	}
	if d := publishedDate(info.Wiki.Published); d != "" {
		album.ReleaseDate = d
	}
	var tags []string
	for _, tag := range info.Tags.Tag {
		if tag.Name != "" {
			tags = append(tags, tag.Name)
		}
	}
	if len(tags) > 0 {
		album.Metadata = map[string]any{"tags": tags}
	}
	na, err := dto.NewAlbum(album)
	if err != nil {
		return nil, provider.DecodeError(provider.NameLastFM, err)
	}

	details := &dto.AlbumDetails{Album: na, Tracks: []dto.ProviderTrack{}}
	for _, at := range info.Tracks.Track {
		t := dto.ProviderTrack{
			Source: string(provider.NameLastFM),
			Title:  at.Name,
			Album:  na.Title,
		}
		if artist := firstNonEmpty(at.Artist.Name, info.Artist); artist != "" {
			t.Artists = []string{artist}
		}
		if at.Duration > 0 {
			t.DurationMS = dto.Int(int(at.Duration) * 1000)
		}
		if at.Attr.Rank > 0 {
			t.Metadata = map[string]any{"rank": int(at.Attr.Rank)}
		}
		nt, err := dto.NewTrack(t)
		if err != nil {
			return nil, provider.DecodeError(provider.NameLastFM, err)
		}
		details.Tracks = append(details.Tracks, nt)
	}
	return details, nil
}

// FetchArtistTopTracks runs artist.gettoptracks.
func (a *Adapter) FetchArtistTopTracks(ctx context.Context, artistID string, limit int) ([]dto.ProviderTrack, error) {
	params, err := artistParams(artistID, "")
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	params.Set("limit", strconv.Itoa(limit))
	var resp TopTracksResponse
	if err := a.call(ctx, "artist.gettoptracks", params, &resp); err != nil {
		return nil, err
	}

	tracks := make([]dto.ProviderTrack, 0, len(resp.TopTracks.Track))
	for _, tt := range resp.TopTracks.Track {
		t := dto.ProviderTrack{
			Source:   string(provider.NameLastFM),
			SourceID: tt.MBID,
			Title:    tt.Name,
		}
		if tt.Artist.Name != "" {
			t.Artists = []string{tt.Artist.Name}
		}
		if n := atoi(tt.Listeners); n > 0 {
			t.Popularity = dto.Int(n)
		}
		if n := atoi(tt.Playcount); n > 0 {
			t.Metadata = map[string]any{"playcount": n}
		}
		nt, err := dto.NewTrack(t)
		if err != nil {
			a.logger.Debug("skipping track", slog.String("name", tt.Name), slog.String("error", err.Error()))
			continue
		}
		tracks = append(tracks, nt)
	}
	return tracks, nil
}

// CheckHealth verifies the API key is valid.
func (a *Adapter) CheckHealth(ctx context.Context) provider.Health {
	if a.apiKey == "" {
		return provider.Health{Status: provider.HealthDown, Details: map[string]any{"error": "api key not configured"}}
	}
	start := time.Now()
	var resp ArtistSearchResponse
	if err := a.call(ctx, "artist.search", url.Values{"artist": {"test"}, "limit": {"1"}}, &resp); err != nil {
		return provider.Health{Status: provider.HealthDown, Details: map[string]any{"error": err.Error()}}
	}
	return provider.Health{Status: provider.HealthOK, Details: map[string]any{"latency_ms": time.Since(start).Milliseconds()}}
}

// call invokes a Last.fm API method and decodes the response into v.
func (a *Adapter) call(ctx context.Context, method string, params url.Values, v any) error {
	if a.apiKey == "" {
		return provider.NewError(provider.NameLastFM, provider.KindValidation, "API key not configured")
	}
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("method", method)
	q.Set("api_key", a.apiKey)
	q.Set("format", "json")

	body, err := provider.Do(ctx, a.client, a.limiter, a.logger, provider.Request{
		Provider: provider.NameLastFM,
		URL:      a.baseURL + "/?" + q.Encode(),
	})
	if err != nil {
		return err
	}
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		return mapAPIError(&apiErr)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return provider.DecodeError(provider.NameLastFM, err)
	}
	return nil
}

func mapAPIError(e *apiError) *provider.Error {
	var kind provider.ErrorKind
	switch e.Code {
	case codeInvalidParameters:
		kind = provider.KindNotFound
	case codeRateLimitExceeded:
		kind = provider.KindRateLimited
	case codeInvalidAPIKey, codeSuspendedAPIKey:
		kind = provider.KindValidation
	default: // codeServiceOffline, codeTemporaryError and anything unlisted
		kind = provider.KindDependency
	}
	return &provider.Error{
		Kind:     kind,
		Provider: provider.NameLastFM,
		Cause:    fmt.Errorf("error %d: %s", e.Code, e.Message),
	}
}

func mapArtist(info *ArtistInfo) (dto.ProviderArtist, error) {
	a := dto.ProviderArtist{
		Source:   string(provider.NameLastFM),
		SourceID: firstNonEmpty(info.MBID, info.Name),
		Name:     info.Name,
	}
	for _, tag := range info.Tags.Tag {
		if tag.Name != "" {
			a.Genres = append(a.Genres, tag.Name)
		}
	}
	if n := atoi(info.Stats.Listeners); n > 0 {
		a.Popularity = dto.Int(n)
	}
	meta := map[string]any{}
	if info.URL != "" {
		meta["url"] = info.URL
	}
	if bio := cleanBio(info.Bio.Summary); bio != "" {
		meta["bio"] = bio
	}
	var similar []string
	for _, s := range info.Similar.Artist {
		if s.Name != "" {
			similar = append(similar, s.Name)
		}
	}
	if len(similar) > 0 {
		meta["similar"] = similar
	}
	if len(meta) > 0 {
		a.Metadata = meta
	}
	return dto.NewArtist(a)
}

func artistParams(id, name string) (url.Values, error) {
	id = strings.TrimSpace(id)
	switch {
	case isUUID(id):
		return url.Values{"mbid": {id}}, nil
	case id != "":
		return url.Values{"artist": {id}}, nil
	case strings.TrimSpace(name) != "":
		return url.Values{"artist": {strings.TrimSpace(name)}}, nil
	default:
		return nil, provider.NewError(provider.NameLastFM, provider.KindValidation, "artist id or name required")
	}
}

func isNotFound(err error) bool {
	var pe *provider.Error
	return errors.As(err, &pe) && pe.Kind == provider.KindNotFound
}

// publishedDate reduces Last.fm's "02 Jun 2003, 00:00" wiki timestamp to a date.
func publishedDate(s string) string {
	t, err := time.Parse("02 Jan 2006, 15:04", strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// cleanBio removes the Last.fm attribution link appended to bios.
func cleanBio(bio string) string {
	if idx := strings.Index(bio, "<a href=\"https://www.last.fm"); idx >= 0 {
		bio = bio[:idx]
	}
	return strings.TrimSpace(bio)
}

// isUUID reports whether s is a canonical hyphenated UUID such as an MBID.
func isUUID(s string) bool {
	return len(s) == 36 && uuid.Validate(s) == nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
