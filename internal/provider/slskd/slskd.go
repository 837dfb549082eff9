// Package slskd adapts a self-hosted slskd (Soulseek) daemon as a track
// provider. Search results become tracks whose candidates are the concrete
// files peers are sharing.
package slskd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

const (
	defaultPollInterval  = time.Second
	defaultSearchTimeout = 15 * time.Second
	defaultResponseLimit = 100
)

// Options configures an Adapter.
type Options struct {
	BaseURL       string
	APIKey        string
	PollInterval  time.Duration // how often search state is polled
	SearchTimeout time.Duration // how long slskd searches the network
	ResponseLimit int
}

// Adapter implements provider.TrackProvider over the slskd REST API. Only
// SearchTracks and CheckHealth are supported.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	opts    Options
	newID   func() string
}

// New creates an slskd adapter. BaseURL is required since slskd is always
// self-hosted.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger, opts Options) *Adapter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = defaultSearchTimeout
	}
	if opts.ResponseLimit <= 0 {
		opts.ResponseLimit = defaultResponseLimit
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Adapter{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", string(provider.NameSlskd))),
		opts:    opts,
		newID:   uuid.NewString,
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameSlskd }

// SearchTracks starts a network search, polls it until slskd reports a
// terminal state and converts the collected responses into tracks. The
// search is deleted afterwards on a best-effort basis.
func (a *Adapter) SearchTracks(ctx context.Context, query string) ([]dto.ProviderTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, provider.NewError(provider.NameSlskd, provider.KindValidation, "empty query")
	}
	if a.opts.BaseURL == "" {
		return nil, provider.NewError(provider.NameSlskd, provider.KindValidation, "base URL not configured")
	}

	id := a.newID()
	body, err := json.Marshal(searchRequest{
		ID:              id,
		SearchText:      query,
		SearchTimeout:   int(a.opts.SearchTimeout.Milliseconds()),
		ResponseLimit:   a.opts.ResponseLimit,
		FilterResponses: true,
	})
	if err != nil {
		return nil, provider.NewError(provider.NameSlskd, provider.KindInternal, "encoding search: %w", err)
	}
	var started Search
	if err := a.do(ctx, http.MethodPost, "/api/v0/searches", body, &started); err != nil {
		return nil, err
	}
	if started.ID != "" {
		id = started.ID
	}
	defer a.deleteSearch(id)

	if err := a.waitForSearch(ctx, id); err != nil {
		return nil, err
	}

	var responses []SearchResponse
	if err := a.do(ctx, http.MethodGet, "/api/v0/searches/"+url.PathEscape(id)+"/responses", nil, &responses); err != nil {
		return nil, err
	}
	tracks := tracksFromResponses(responses)

	a.logger.Debug("search completed",
		slog.String("query", query),
		slog.Int("responses", len(responses)),
		slog.Int("tracks", len(tracks)))

	return tracks, nil
}

// waitForSearch polls the search state until it is terminal.
func (a *Adapter) waitForSearch(ctx context.Context, id string) error {
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()
	for {
		var s Search
		if err := a.do(ctx, http.MethodGet, "/api/v0/searches/"+url.PathEscape(id), nil, &s); err != nil {
			return err
		}
		if s.State.Errored() {
			return provider.NewError(provider.NameSlskd, provider.KindDependency, "search %s ended in state %q", id, s.State)
		}
		if s.IsComplete || s.State.IsTerminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return provider.TransportError(provider.NameSlskd, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *Adapter) deleteSearch(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.do(ctx, http.MethodDelete, "/api/v0/searches/"+url.PathEscape(id), nil, nil); err != nil {
		a.logger.Debug("deleting search", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// FetchArtist is unsupported.
func (a *Adapter) FetchArtist(_ context.Context, _, _ string) (*dto.ProviderArtist, error) {
	return nil, provider.Unsupported(provider.NameSlskd, provider.OpFetchArtist)
}

// FetchArtistReleases is unsupported.
func (a *Adapter) FetchArtistReleases(_ context.Context, _ string, _ int) ([]dto.ProviderRelease, error) {
	return nil, provider.Unsupported(provider.NameSlskd, provider.OpFetchArtistReleases)
}

// FetchAlbum is unsupported.
func (a *Adapter) FetchAlbum(_ context.Context, _ string) (*dto.AlbumDetails, error) {
	return nil, provider.Unsupported(provider.NameSlskd, provider.OpFetchAlbum)
}

// FetchArtistTopTracks is unsupported.
func (a *Adapter) FetchArtistTopTracks(_ context.Context, _ string, _ int) ([]dto.ProviderTrack, error) {
	return nil, provider.Unsupported(provider.NameSlskd, provider.OpFetchArtistTopTracks)
}

// CheckHealth reports whether the daemon is reachable and logged in to the
// Soulseek network.
func (a *Adapter) CheckHealth(ctx context.Context) provider.Health {
	var app Application
	if err := a.do(ctx, http.MethodGet, "/api/v0/application", nil, &app); err != nil {
		return provider.Health{Status: provider.HealthDown, Details: map[string]any{"error": err.Error()}}
	}
	details := map[string]any{"state": app.Server.State}
	if app.Version.Full != "" {
		details["version"] = app.Version.Full
	}
	if !app.Server.IsConnected || !app.Server.IsLoggedIn {
		return provider.Health{Status: provider.HealthDegraded, Details: details}
	}
	return provider.Health{Status: provider.HealthOK, Details: details}
}

func (a *Adapter) do(ctx context.Context, method, path string, body []byte, v any) error {
	req := provider.Request{
		Provider: provider.NameSlskd,
		Method:   method,
		URL:      a.opts.BaseURL + path,
		Header:   http.Header{"X-API-Key": {a.opts.APIKey}},
	}
	if body != nil {
		req.Body = bytes.NewReader(body)
		req.Header.Set("Content-Type", "application/json")
	}
	data, err := provider.Do(ctx, a.client, a.limiter, a.logger, req)
	if err != nil {
		return err
	}
	if v == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return provider.DecodeError(provider.NameSlskd, err)
	}
	return nil
}

// losslessExtensions maps lossless audio extensions to format names.
var losslessExtensions = map[string]string{
	"flac": "flac",
	"wav":  "wav",
	"aiff": "aiff",
	"aif":  "aiff",
	"alac": "alac",
	"ape":  "ape",
	"wv":   "wavpack",
	"tta":  "tta",
}

// lossyExtensions maps lossy audio extensions to format names.
var lossyExtensions = map[string]string{
	"mp3":  "mp3",
	"m4a":  "aac",
	"aac":  "aac",
	"ogg":  "ogg",
	"opus": "opus",
	"wma":  "wma",
	"mpc":  "musepack",
}

// audioFormat returns the format name for an audio file, or "" for
// anything that is not audio.
func audioFormat(f File) string {
	ext := fileExtension(f)
	if name, ok := losslessExtensions[ext]; ok {
		return name
	}
	if name, ok := lossyExtensions[ext]; ok {
		return name
	}
	return ""
}

// fileExtension returns the lowercase extension without dot.
// Falls back to extracting from filename if Extension field is empty.
func fileExtension(f File) string {
	ext := strings.ToLower(strings.TrimPrefix(f.Extension, "."))
	if ext != "" {
		return ext
	}
	if idx := strings.LastIndex(f.Filename, "."); idx != -1 {
		return strings.ToLower(f.Filename[idx+1:])
	}
	return ""
}

// splitPath returns the base name and parent directory name of a path.
// slskd returns paths from various operating systems, so both / and \ are
// separators.
func splitPath(path string) (base, parent string) {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) == 0 {
		return "", ""
	}
	base = parts[len(parts)-1]
	if len(parts) > 1 {
		parent = parts[len(parts)-2]
	}
	return base, parent
}

var (
	trackNumber = regexp.MustCompile(`^\s*(?:\d{1,2}[-.])?\d{1,3}\s*[-._)]?\s+`)
	yearSuffix  = regexp.MustCompile(`\s*[(\[]\d{4}[)\]]\s*$`)
)

// parseFilename extracts artist and title from names like
// "01 - Artist - Title.flac" or "03. Title.mp3".
func parseFilename(base string) (artist, title string) {
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = trackNumber.ReplaceAllString(base, "")
	base = strings.ReplaceAll(base, "_", " ")
	if a, t, ok := strings.Cut(base, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(t)
	}
	return "", strings.TrimSpace(base)
}

// parseDirectory extracts "Artist - Album (Year)" style folder names.
func parseDirectory(dir string) (artist, album string) {
	dir = yearSuffix.ReplaceAllString(dir, "")
	if a, al, ok := strings.Cut(dir, " - "); ok {
		return strings.TrimSpace(a), strings.TrimSpace(al)
	}
	return "", strings.TrimSpace(dir)
}

// tracksFromResponses groups audio files by normalized artist and title into
// tracks, in the order files first appear. Locked and non-audio files are
// skipped.
func tracksFromResponses(responses []SearchResponse) []dto.ProviderTrack {
	type group struct {
		track dto.ProviderTrack
		cands []dto.TrackCandidate
	}
	var order []string
	groups := make(map[string]*group)

	for _, resp := range responses {
		availability := 1.0
		if !resp.HasFreeSlot {
			availability = 1.0 / float64(1+max(resp.QueueLength, 0))
		}
		for _, f := range resp.Files {
			format := audioFormat(f)
			if f.IsLocked || format == "" {
				continue
			}
			base, parent := splitPath(f.Filename)
			artist, title := parseFilename(base)
			dirArtist, album := parseDirectory(parent)
			if artist == "" {
				artist = dirArtist
			}
			if title == "" {
				continue
			}

			key := dto.NormalizeText(artist) + "\x00" + dto.NormalizeText(title)
			g, ok := groups[key]
			if !ok {
				g = &group{track: dto.ProviderTrack{
					Source: string(provider.NameSlskd),
					Title:  title,
					Album:  album,
				}}
				if artist != "" {
					g.track.Artists = []string{artist}
				}
				groups[key] = g
				order = append(order, key)
			}
			if g.track.DurationMS == nil && f.Length > 0 {
				g.track.DurationMS = dto.Int(f.Length * 1000)
			}

			c := dto.TrackCandidate{
				Title:        base,
				Artist:       artist,
				Format:       format,
				SizeBytes:    dto.Int64(f.Size),
				Username:     resp.Username,
				Availability: dto.Float(availability),
				Source:       string(provider.NameSlskd),
				DownloadURI:  fmt.Sprintf("slskd://%s/%s", url.PathEscape(resp.Username), f.Filename),
				Metadata: map[string]any{
					"upload_speed": resp.UploadSpeed,
					"queue_length": resp.QueueLength,
				},
			}
			if f.BitRate > 0 {
				c.BitrateKbps = dto.Int(f.BitRate)
			}
			if f.BitDepth > 0 {
				c.Metadata["bit_depth"] = f.BitDepth
			}
			g.cands = append(g.cands, c)
		}
	}

	tracks := make([]dto.ProviderTrack, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.track.Candidates = g.cands
		t, err := dto.NewTrack(g.track)
		if err != nil {
			continue
		}
		tracks = append(tracks, t)
	}
	return tracks
}
