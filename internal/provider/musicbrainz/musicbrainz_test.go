package musicbrainz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sydlexius/tributary/internal/provider"
)

const artistJSON = `{
  "id": "a74b1b7f-71a5-4011-9441-d0b5e4122711",
  "name": "Radiohead",
  "sort-name": "Radiohead",
  "type": "Group",
  "country": "GB",
  "life-span": {"begin": "1991", "ended": false},
  "aliases": [{"name": "On a Friday"}, {"name": "Radiohead"}],
  "genres": [{"name": "alternative rock", "count": 10}, {"name": "art rock", "count": 5}],
  "tags": [{"name": "british", "count": 3}]
}`

const searchArtistJSON = `{"count": 2, "offset": 0, "artists": [
  {"id": "other", "name": "Radiohead Tribute", "score": 60},
  {"id": "a74b1b7f-71a5-4011-9441-d0b5e4122711", "name": "Radiohead", "score": 100}
]}`

const recordingsJSON = `{"count": 2, "offset": 0, "recordings": [
  {
    "id": "rec-1", "title": "Paranoid Android", "length": 386000, "score": 100,
    "first-release-date": "1997-05-21",
    "artist-credit": [{"name": "Radiohead", "artist": {"id": "a74b", "name": "Radiohead"}}],
    "releases": [{"id": "rel-1", "title": "OK Computer", "date": "1997-05-21"}]
  },
  {"id": "rec-2", "title": "", "length": 1000}
]}`

const releaseGroupsJSON = `{"release-group-count": 3, "release-group-offset": 0, "release-groups": [
  {"id": "rg-1", "title": "Pablo Honey", "primary-type": "Album", "first-release-date": "1993-02-22"},
  {"id": "rg-2", "title": "I Might Be Wrong", "primary-type": "Album", "secondary-types": ["Live"], "first-release-date": "2001-11-12"},
  {"id": "rg-3", "title": "", "primary-type": "Single"}
]}`

const releaseJSON = `{
  "id": "rel-1", "title": "OK Computer", "date": "1997-05-21", "status": "Official",
  "artist-credit": [{"name": "Radiohead", "artist": {"id": "a74b", "name": "Radiohead"}}],
  "release-group": {"id": "rg-ok", "title": "OK Computer", "primary-type": "Album"},
  "media": [
    {"position": 1, "track-count": 2, "tracks": [
      {"id": "t1", "number": "1", "title": "Airbag", "length": 284000, "position": 1,
       "recording": {"id": "rec-a", "title": "Airbag", "length": 284000}},
      {"id": "t2", "number": "2", "title": "Paranoid Android", "length": 386000, "position": 2,
       "recording": {"id": "rec-1", "title": "Paranoid Android", "length": 386000}}
    ]}
  ]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/artist" && r.URL.Query().Get("query") != "":
			query := r.URL.Query().Get("query")
			if query == "nonexistent-artist-xyz" {
				w.Write([]byte(`{"created":"","count":0,"offset":0,"artists":[]}`))
				return
			}
			w.Write([]byte(searchArtistJSON))

		case strings.HasPrefix(r.URL.Path, "/artist/"):
			mbid := strings.TrimPrefix(r.URL.Path, "/artist/")
			switch mbid {
			case "not-found-id":
				w.WriteHeader(http.StatusNotFound)
			case "server-error-id":
				w.WriteHeader(http.StatusServiceUnavailable)
			case "rate-limited-id":
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
			case "garbage-id":
				w.Write([]byte(`{not json`))
			default:
				w.Write([]byte(artistJSON))
			}

		case r.URL.Path == "/recording":
			w.Write([]byte(recordingsJSON))

		case r.URL.Path == "/release-group" && r.URL.Query().Get("artist") != "":
			if r.URL.Query().Get("artist") == "not-found-id" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(releaseGroupsJSON))

		case r.URL.Path == "/release/rel-1":
			w.Write([]byte(releaseJSON))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	limiter := provider.NewRateLimiterMap(map[provider.ProviderName]float64{provider.NameMusicBrainz: 0})
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, logger, baseURL)
}

func errorKind(err error) provider.ErrorKind {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return provider.KindUnknown
}

func TestName(t *testing.T) {
	a := newTestAdapter(t, "http://localhost")
	if a.Name() != provider.NameMusicBrainz {
		t.Errorf("expected %s, got %s", provider.NameMusicBrainz, a.Name())
	}
}

func TestSearchTracks(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	tracks, err := a.SearchTracks(context.Background(), "paranoid android")
	if err != nil {
		t.Fatalf("SearchTracks: %v", err)
	}
	// The untitled recording is dropped.
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	tr := tracks[0]
	if tr.Title != "Paranoid Android" || tr.SourceID != "rec-1" {
		t.Errorf("unexpected track: %+v", tr)
	}
	if tr.Album != "OK Computer" {
		t.Errorf("expected album OK Computer, got %s", tr.Album)
	}
	if tr.Year == nil || *tr.Year != 1997 {
		t.Errorf("expected year 1997, got %v", tr.Year)
	}
	if tr.DurationMS == nil || *tr.DurationMS != 386000 {
		t.Errorf("expected duration 386000, got %v", tr.DurationMS)
	}
	if len(tr.Artists) != 1 || tr.Artists[0] != "Radiohead" {
		t.Errorf("unexpected artists: %v", tr.Artists)
	}
}

func TestSearchTracksEmptyQuery(t *testing.T) {
	a := newTestAdapter(t, "http://localhost")
	_, err := a.SearchTracks(context.Background(), "   ")
	if errorKind(err) != provider.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestFetchArtistByID(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	artist, err := a.FetchArtist(context.Background(), "a74b1b7f-71a5-4011-9441-d0b5e4122711", "")
	if err != nil {
		t.Fatalf("FetchArtist: %v", err)
	}
	if artist.Name != "Radiohead" {
		t.Errorf("expected name Radiohead, got %s", artist.Name)
	}
	if artist.Source != "musicbrainz" || artist.SourceID != "a74b1b7f-71a5-4011-9441-d0b5e4122711" {
		t.Errorf("unexpected source: %s/%s", artist.Source, artist.SourceID)
	}
	if len(artist.Aliases) != 1 || artist.Aliases[0] != "On a Friday" {
		t.Errorf("unexpected aliases: %v", artist.Aliases)
	}
	if len(artist.Genres) != 2 {
		t.Errorf("expected 2 genres, got %v", artist.Genres)
	}
	if artist.Metadata["country"] != "GB" {
		t.Errorf("expected country GB, got %v", artist.Metadata["country"])
	}
}

func TestFetchArtistByName(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	artist, err := a.FetchArtist(context.Background(), "", "Radiohead")
	if err != nil {
		t.Fatalf("FetchArtist: %v", err)
	}
	if artist == nil || artist.SourceID != "a74b1b7f-71a5-4011-9441-d0b5e4122711" {
		t.Fatalf("expected best-scoring hit, got %+v", artist)
	}
}

func TestFetchArtistByNameNoMatch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	artist, err := a.FetchArtist(context.Background(), "", "nonexistent-artist-xyz")
	if err != nil {
		t.Fatalf("FetchArtist: %v", err)
	}
	if artist != nil {
		t.Errorf("expected nil artist, got %+v", artist)
	}
}

func TestFetchArtistErrors(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	cases := []struct {
		id   string
		want provider.ErrorKind
	}{
		{"not-found-id", provider.KindNotFound},
		{"server-error-id", provider.KindDependency},
		{"rate-limited-id", provider.KindRateLimited},
		{"garbage-id", provider.KindInternal},
	}
	for _, c := range cases {
		_, err := a.FetchArtist(context.Background(), c.id, "")
		if got := errorKind(err); got != c.want {
			t.Errorf("FetchArtist(%s): expected %s, got %s (%v)", c.id, c.want, got, err)
		}
	}

	_, err := a.FetchArtist(context.Background(), "rate-limited-id", "")
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.RetryAfter.Seconds() != 7 || pe.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected retry-after 7s on 429, got %+v", pe)
	}
}

func TestFetchArtistReleases(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	releases, err := a.FetchArtistReleases(context.Background(), "a74b1b7f-71a5-4011-9441-d0b5e4122711", 0)
	if err != nil {
		t.Fatalf("FetchArtistReleases: %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(releases))
	}
	first := releases[0]
	if first.Title != "Pablo Honey" || first.Type != "album" || first.ReleaseDate != "1993-02-22" {
		t.Errorf("unexpected first release: %+v", first)
	}
	if len(releases[1].EditionTags) != 1 || releases[1].EditionTags[0] != "live" {
		t.Errorf("expected live edition tag, got %v", releases[1].EditionTags)
	}
}

func TestFetchArtistReleasesNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	_, err := a.FetchArtistReleases(context.Background(), "not-found-id", 10)
	if errorKind(err) != provider.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestFetchAlbum(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	details, err := a.FetchAlbum(context.Background(), "rel-1")
	if err != nil {
		t.Fatalf("FetchAlbum: %v", err)
	}
	if details.Album.Title != "OK Computer" || details.Album.Type != "album" {
		t.Errorf("unexpected album: %+v", details.Album)
	}
	if details.Album.TotalTracks == nil || *details.Album.TotalTracks != 2 {
		t.Errorf("expected 2 total tracks, got %v", details.Album.TotalTracks)
	}
	if len(details.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(details.Tracks))
	}
	if details.Tracks[0].Title != "Airbag" || details.Tracks[0].Album != "OK Computer" {
		t.Errorf("unexpected first track: %+v", details.Tracks[0])
	}
	if len(details.Tracks[0].Artists) != 1 || details.Tracks[0].Artists[0] != "Radiohead" {
		t.Errorf("expected release credit on track, got %v", details.Tracks[0].Artists)
	}
}

func TestFetchArtistTopTracksUnsupported(t *testing.T) {
	a := newTestAdapter(t, "http://localhost")
	_, err := a.FetchArtistTopTracks(context.Background(), "x", 10)
	if errorKind(err) != provider.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	srv := newTestServer(t)
	a := newTestAdapter(t, srv.URL)

	if h := a.CheckHealth(context.Background()); h.Status != provider.HealthOK {
		t.Errorf("expected ok, got %+v", h)
	}

	srv.Close()
	if h := a.CheckHealth(context.Background()); h.Status != provider.HealthDown {
		t.Errorf("expected down after close, got %+v", h)
	}
}

func TestContextCancellation(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.SearchTracks(ctx, "Radiohead")
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":0,"offset":0,"recordings":[]}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, _ = a.SearchTracks(context.Background(), "test")

	if !strings.HasPrefix(gotUA, "Tributary/") {
		t.Errorf("expected User-Agent starting with Tributary/, got %s", gotUA)
	}
}

func TestNormalizeHyphens(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"a\u2010ha", "a-ha"},                    // U+2010 HYPHEN
		{"a\u2011ha", "a-ha"},                    // U+2011 NON-BREAKING HYPHEN
		{"a-ha", "a-ha"},                         // already ASCII, unchanged
		{"Sigur \u2013 Ros", "Sigur \u2013 Ros"}, // en-dash left as-is
		{"", ""},
	}
	for _, c := range cases {
		got := normalizeHyphens(c.input)
		if got != c.want {
			t.Errorf("normalizeHyphens(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}
