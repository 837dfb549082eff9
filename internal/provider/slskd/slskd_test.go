package slskd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sydlexius/tributary/internal/provider"
)

const responsesJSON = `[
  {"username": "alice", "fileCount": 3, "hasFreeUploadSlot": true, "queueLength": 0, "uploadSpeed": 5000000,
   "files": [
     {"filename": "Music\\Radiohead - OK Computer (1997)\\02 - Paranoid Android.flac", "size": 40000000, "extension": "flac", "bitDepth": 16, "length": 386},
     {"filename": "Music\\Radiohead - OK Computer (1997)\\cover.jpg", "size": 100000, "extension": "jpg"},
     {"filename": "Music\\Radiohead - OK Computer (1997)\\01 - Airbag.flac", "size": 30000000, "extension": "flac", "isLocked": true}
   ]},
  {"username": "bob", "fileCount": 1, "hasFreeUploadSlot": false, "queueLength": 3, "uploadSpeed": 100000,
   "files": [
     {"filename": "/share/mp3/Radiohead - Paranoid Android.mp3", "size": 9000000, "extension": "", "bitRate": 320, "length": 387}
   ]}
]`

type fakeDaemon struct {
	mu       sync.Mutex
	polls    int
	deleted  []string
	search   searchRequest
	apiKey   string
	finalFor int // polls before the search reports completion
	state    string
}

func (d *fakeDaemon) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v0/searches", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.apiKey = r.Header.Get("X-API-Key")
		if err := json.NewDecoder(r.Body).Decode(&d.search); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Search{ID: d.search.ID, SearchText: d.search.SearchText, State: SearchStateRequested})
	})
	mux.HandleFunc("GET /api/v0/searches/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.polls++
		state := SearchStateInProgress
		if d.polls > d.finalFor {
			state = SearchState(d.state)
		}
		json.NewEncoder(w).Encode(Search{ID: r.PathValue("id"), State: state})
	})
	mux.HandleFunc("GET /api/v0/searches/{id}/responses", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(responsesJSON))
	})
	mux.HandleFunc("DELETE /api/v0/searches/{id}", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.deleted = append(d.deleted, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/v0/application", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"version": {"full": "0.21.0"}, "server": {"state": "Connected, LoggedIn", "isConnected": true, "isLoggedIn": true}}`))
	})
	return mux
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	limiter := provider.NewRateLimiterMap(map[provider.ProviderName]float64{provider.NameSlskd: 0})
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	a := New(limiter, logger, Options{BaseURL: baseURL, APIKey: "secret", PollInterval: time.Millisecond})
	a.newID = func() string { return "search-1" }
	return a
}

func errorKind(err error) provider.ErrorKind {
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return provider.KindUnknown
}

func TestSearchTracks(t *testing.T) {
	d := &fakeDaemon{finalFor: 2, state: "Completed, ResponseLimitReached"}
	srv := httptest.NewServer(d.handler(t))
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	tracks, err := a.SearchTracks(context.Background(), "radiohead paranoid android")
	if err != nil {
		t.Fatalf("SearchTracks: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.apiKey != "secret" {
		t.Errorf("expected API key header, got %q", d.apiKey)
	}
	if d.search.ID != "search-1" || d.search.SearchText != "radiohead paranoid android" {
		t.Errorf("unexpected search request: %+v", d.search)
	}
	if d.polls != 3 {
		t.Errorf("expected 3 polls, got %d", d.polls)
	}
	if len(d.deleted) != 1 || d.deleted[0] != "search-1" {
		t.Errorf("expected search to be deleted, got %v", d.deleted)
	}

	// Both peers share the same song; the locked file and the cover are skipped.
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d: %+v", len(tracks), tracks)
	}
	tr := tracks[0]
	if tr.Title != "Paranoid Android" || tr.Album != "OK Computer" {
		t.Errorf("unexpected track: %+v", tr)
	}
	if len(tr.Artists) != 1 || tr.Artists[0] != "Radiohead" {
		t.Errorf("unexpected artists: %v", tr.Artists)
	}
	if tr.DurationMS == nil || *tr.DurationMS != 386000 {
		t.Errorf("unexpected duration: %v", tr.DurationMS)
	}
	if len(tr.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(tr.Candidates))
	}

	flac, mp3 := tr.Candidates[0], tr.Candidates[1]
	if flac.Format != "flac" || flac.Username != "alice" || *flac.Availability != 1.0 {
		t.Errorf("unexpected flac candidate: %+v", flac)
	}
	if flac.Metadata["bit_depth"] != 16 {
		t.Errorf("expected bit depth, got %v", flac.Metadata)
	}
	if mp3.Format != "mp3" || mp3.BitrateKbps == nil || *mp3.BitrateKbps != 320 {
		t.Errorf("unexpected mp3 candidate: %+v", mp3)
	}
	if *mp3.Availability != 0.25 {
		t.Errorf("expected availability 0.25 for queue of 3, got %v", *mp3.Availability)
	}
	if mp3.DownloadURI != "slskd://bob//share/mp3/Radiohead - Paranoid Android.mp3" {
		t.Errorf("unexpected download uri: %s", mp3.DownloadURI)
	}
}

func TestSearchTracksErroredSearch(t *testing.T) {
	d := &fakeDaemon{state: "Completed, Errored"}
	srv := httptest.NewServer(d.handler(t))
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	_, err := a.SearchTracks(context.Background(), "x")
	if errorKind(err) != provider.KindDependency {
		t.Errorf("expected dependency error, got %v", err)
	}
}

func TestSearchTracksDeadline(t *testing.T) {
	d := &fakeDaemon{finalFor: 1 << 30, state: "Completed"}
	srv := httptest.NewServer(d.handler(t))
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := a.SearchTracks(ctx, "x")
	if errorKind(err) != provider.KindTimeout {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestSearchTracksValidation(t *testing.T) {
	a := newTestAdapter(t, "")
	if _, err := a.SearchTracks(context.Background(), "x"); errorKind(err) != provider.KindValidation {
		t.Errorf("expected validation error without base URL, got %v", err)
	}
	a = newTestAdapter(t, "http://localhost")
	if _, err := a.SearchTracks(context.Background(), "  "); errorKind(err) != provider.KindValidation {
		t.Errorf("expected validation error for empty query, got %v", err)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	a := newTestAdapter(t, "http://localhost")
	ctx := context.Background()

	_, err := a.FetchArtist(ctx, "x", "")
	if errorKind(err) != provider.KindValidation {
		t.Errorf("FetchArtist: expected validation, got %v", err)
	}
	_, err = a.FetchArtistReleases(ctx, "x", 0)
	if errorKind(err) != provider.KindValidation {
		t.Errorf("FetchArtistReleases: expected validation, got %v", err)
	}
	_, err = a.FetchAlbum(ctx, "x")
	if errorKind(err) != provider.KindValidation {
		t.Errorf("FetchAlbum: expected validation, got %v", err)
	}
	_, err = a.FetchArtistTopTracks(ctx, "x", 0)
	if errorKind(err) != provider.KindValidation {
		t.Errorf("FetchArtistTopTracks: expected validation, got %v", err)
	}
}

func TestCheckHealth(t *testing.T) {
	d := &fakeDaemon{}
	srv := httptest.NewServer(d.handler(t))
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	h := a.CheckHealth(context.Background())
	if h.Status != provider.HealthOK {
		t.Errorf("expected ok, got %+v", h)
	}
	if h.Details["version"] != "0.21.0" {
		t.Errorf("expected version detail, got %v", h.Details)
	}
}

func TestParseFilename(t *testing.T) {
	cases := []struct {
		in, artist, title string
	}{
		{"01 - Airbag.flac", "", "Airbag"},
		{"03. Karma Police.mp3", "", "Karma Police"},
		{"1-05 Let Down.flac", "", "Let Down"},
		{"Radiohead - Creep.mp3", "Radiohead", "Creep"},
		{"07 - Radiohead - No_Surprises.flac", "Radiohead", "No Surprises"},
		{"Paranoid Android.ogg", "", "Paranoid Android"},
	}
	for _, c := range cases {
		artist, title := parseFilename(c.in)
		if artist != c.artist || title != c.title {
			t.Errorf("parseFilename(%q) = (%q, %q), want (%q, %q)", c.in, artist, title, c.artist, c.title)
		}
	}
}

func TestSearchStateIsTerminal(t *testing.T) {
	cases := map[SearchState]bool{
		SearchStateInProgress:             false,
		SearchStateRequested:              false,
		SearchStateCompleted:              true,
		"Completed, ResponseLimitReached": true,
		"Completed, TimedOut":             true,
		SearchStateCancelled:              true,
	}
	for s, want := range cases {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%q.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}
