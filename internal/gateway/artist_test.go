package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

func release(source, id, title string) dto.ProviderRelease {
	return dto.ProviderRelease{Source: source, SourceID: id, Title: title}
}

func TestArtistGatewayEmptyProviders(t *testing.T) {
	g := newTestGateway(t, testConfig(RetryPolicy{}), nil)
	ag := NewArtistGateway(g, discardLogger())

	resp := ag.FetchArtist(context.Background(), "artist-1", nil, 10)
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.ArtistID != "artist-1" {
		t.Errorf("ArtistID = %q, want artist-1", resp.ArtistID)
	}
	if len(resp.Results) != 0 || len(resp.Releases()) != 0 || len(resp.Errors()) != 0 {
		t.Errorf("expected empty response, got %+v", resp)
	}
	if resp.Retryable() {
		t.Error("empty response should not be retryable")
	}
	if resp.PreferredArtist("deezer") != nil {
		t.Error("expected no preferred artist")
	}
}

func TestArtistGatewayUsesReturnedSourceID(t *testing.T) {
	p := &mockProvider{
		name: provider.NameDeezer,
		artistFn: func(_ context.Context, _, _ string) (*dto.ProviderArtist, error) {
			return &dto.ProviderArtist{Source: "deezer", SourceID: "27", Name: "Daft Punk"}, nil
		},
		releasesFn: func(_ context.Context, id string, limit int) ([]dto.ProviderRelease, error) {
			if limit != 25 {
				t.Errorf("limit = %d, want 25", limit)
			}
			return []dto.ProviderRelease{release("deezer", "r-"+id, "Discovery")}, nil
		},
	}
	fallback := &mockProvider{name: provider.NameMusicBrainz}
	g := newTestGateway(t, testConfig(RetryPolicy{}), []provider.TrackProvider{p, fallback})
	ag := NewArtistGateway(g, discardLogger())

	resp := ag.FetchArtist(context.Background(), "mbid-1", []provider.ProviderName{provider.NameDeezer, provider.NameMusicBrainz}, 25)
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Succeeded() != 2 {
		t.Errorf("Succeeded() = %d, want 2", resp.Succeeded())
	}

	if _, ok := p.releasesCalls.Load("27"); !ok {
		t.Error("expected releases fetched with the provider's artist id")
	}
	// No artist from MusicBrainz: releases are fetched with the caller's id.
	if _, ok := fallback.releasesCalls.Load("mbid-1"); !ok {
		t.Error("expected releases fetched with the caller's id")
	}

	rels := resp.Releases()
	if len(rels) != 1 || rels[0].SourceID != "r-27" {
		t.Errorf("releases = %+v, want one r-27", rels)
	}
}

func TestArtistGatewayPartialFailure(t *testing.T) {
	ok := &mockProvider{
		name: provider.NameMusicBrainz,
		artistFn: func(_ context.Context, id, _ string) (*dto.ProviderArtist, error) {
			return &dto.ProviderArtist{Source: "musicbrainz", SourceID: id, Name: "Aurora"}, nil
		},
		releasesFn: func(_ context.Context, _ string, _ int) ([]dto.ProviderRelease, error) {
			return []dto.ProviderRelease{release("musicbrainz", "rg1", "All My Demons Greeting Me as a Friend")}, nil
		},
	}
	notFound := &mockProvider{
		name: provider.NameDeezer,
		artistFn: func(_ context.Context, _, _ string) (*dto.ProviderArtist, error) {
			return nil, provider.NewError(provider.NameDeezer, provider.KindNotFound, "not a deezer id")
		},
	}
	flaky := &mockProvider{
		name: provider.NameLastFM,
		artistFn: func(_ context.Context, id, _ string) (*dto.ProviderArtist, error) {
			return &dto.ProviderArtist{Source: "lastfm", Name: "AURORA"}, nil
		},
		releasesFn: func(_ context.Context, _ string, _ int) ([]dto.ProviderRelease, error) {
			return nil, dependencyErr(provider.NameLastFM)
		},
	}
	g := newTestGateway(t, testConfig(RetryPolicy{}), []provider.TrackProvider{ok, notFound, flaky})
	ag := NewArtistGateway(g, discardLogger())

	names := []provider.ProviderName{provider.NameMusicBrainz, provider.NameDeezer, provider.NameLastFM}
	resp := ag.FetchArtist(context.Background(), "mbid", names, 0)

	if len(resp.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(resp.Results))
	}
	for i, n := range names {
		if resp.Results[i].Provider != n {
			t.Errorf("result %d provider = %s, want %s", i, resp.Results[i].Provider, n)
		}
	}
	if resp.Succeeded() != 1 {
		t.Errorf("Succeeded() = %d, want 1", resp.Succeeded())
	}

	errs := resp.Errors()
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	if !errors.Is(errs[provider.NameDeezer], ErrNotFound) {
		t.Errorf("deezer error = %v, want not found", errs[provider.NameDeezer])
	}
	if !errors.Is(errs[provider.NameLastFM], ErrDependency) {
		t.Errorf("lastfm error = %v, want dependency", errs[provider.NameLastFM])
	}
	if !resp.Retryable() {
		t.Error("expected response to be retryable")
	}

	lastfm := resp.Results[2]
	if lastfm.Artist != nil {
		t.Error("a failed release fetch should discard the artist")
	}
	if lastfm.Releases == nil || len(lastfm.Releases) != 0 {
		t.Errorf("failed result releases = %#v, want empty non-nil", lastfm.Releases)
	}
	if !lastfm.Retryable {
		t.Error("lastfm result should be retryable")
	}
	if resp.Results[1].Retryable {
		t.Error("deezer not-found result should not be retryable")
	}
	if n := len(resp.Releases()); n != 1 {
		t.Errorf("got %d releases, want 1", n)
	}
}

func TestArtistGatewayNotRetryableWhenOnlyPermanentFailures(t *testing.T) {
	p := &mockProvider{
		name: provider.NameDeezer,
		artistFn: func(_ context.Context, _, _ string) (*dto.ProviderArtist, error) {
			return nil, provider.NewError(provider.NameDeezer, provider.KindValidation, "bad id")
		},
	}
	g := newTestGateway(t, testConfig(RetryPolicy{}), []provider.TrackProvider{p})
	ag := NewArtistGateway(g, discardLogger())

	resp := ag.FetchArtist(context.Background(), "x", []provider.ProviderName{provider.NameDeezer}, 0)
	if resp.Succeeded() != 0 {
		t.Errorf("Succeeded() = %d, want 0", resp.Succeeded())
	}
	if resp.Retryable() {
		t.Error("validation failures should not be retryable")
	}
}

func TestArtistGatewayReleasesLastWriterWins(t *testing.T) {
	fastDone := make(chan struct{})
	slow := &mockProvider{
		name: "slow",
		releasesFn: func(_ context.Context, _ string, _ int) ([]dto.ProviderRelease, error) {
			<-fastDone
			time.Sleep(30 * time.Millisecond)
			return []dto.ProviderRelease{
				release("slow", "shared", "Title From Slow"),
				release("slow", "", "No ID"),
			}, nil
		},
	}
	fast := &mockProvider{
		name: "fast",
		releasesFn: func(_ context.Context, _ string, _ int) ([]dto.ProviderRelease, error) {
			defer close(fastDone)
			return []dto.ProviderRelease{
				release("fast", "shared", "Title From Fast"),
				release("fast", "only-fast", "Fast Only"),
			}, nil
		},
	}
	g := newTestGateway(t, testConfig(RetryPolicy{}), []provider.TrackProvider{slow, fast})
	ag := NewArtistGateway(g, discardLogger())

	resp := ag.FetchArtist(context.Background(), "a", []provider.ProviderName{"slow", "fast"}, 0)
	rels := resp.Releases()
	if len(rels) != 3 {
		t.Fatalf("got %d releases, want 3", len(rels))
	}
	if rels[0].SourceID != "shared" || rels[0].Title != "Title From Slow" {
		t.Errorf("first release = %+v, want shared from the provider finishing last", rels[0])
	}
	if rels[1].SourceID != "only-fast" {
		t.Errorf("second release = %q, want only-fast", rels[1].SourceID)
	}
	if rels[2].Title != "No ID" {
		t.Errorf("third release = %q, want No ID", rels[2].Title)
	}
}

func TestPreferredArtist(t *testing.T) {
	resp := &ArtistResponse{Results: []ArtistResult{
		{Provider: provider.NameMusicBrainz},
		{Provider: provider.NameLastFM, Artist: &dto.ProviderArtist{Source: "lastfm", Name: "A"}},
		{Provider: provider.NameDeezer, Artist: &dto.ProviderArtist{Source: "Deezer", Name: "B"}},
	}}

	for source, want := range map[string]string{"deezer": "B", "musicbrainz": "A", "": "A"} {
		if got := resp.PreferredArtist(source).Name; got != want {
			t.Errorf("PreferredArtist(%q) = %q, want %q", source, got, want)
		}
	}
}

func TestReleasesHandBuiltResponse(t *testing.T) {
	resp := &ArtistResponse{Results: []ArtistResult{
		{Releases: []dto.ProviderRelease{release("a", "1", "First")}},
		{Releases: []dto.ProviderRelease{release("b", "1", "Second"), release("b", "2", "Other")}},
	}}
	rels := resp.Releases()
	if len(rels) != 2 {
		t.Fatalf("got %d releases, want 2", len(rels))
	}
	if rels[0].Title != "Second" {
		t.Errorf("first title = %q, want Second", rels[0].Title)
	}
}
