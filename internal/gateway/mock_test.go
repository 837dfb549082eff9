package gateway

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

// mockProvider implements provider.TrackProvider with function fields.
type mockProvider struct {
	name          provider.ProviderName
	searchFn      func(ctx context.Context, query string) ([]dto.ProviderTrack, error)
	artistFn      func(ctx context.Context, id, name string) (*dto.ProviderArtist, error)
	releasesFn    func(ctx context.Context, artistID string, limit int) ([]dto.ProviderRelease, error)
	albumFn       func(ctx context.Context, albumID string) (*dto.AlbumDetails, error)
	topTracksFn   func(ctx context.Context, artistID string, limit int) ([]dto.ProviderTrack, error)
	healthFn      func(ctx context.Context) provider.Health
	calls         atomic.Int32
	releasesCalls sync.Map // artistID -> struct{}
}

func (m *mockProvider) Name() provider.ProviderName { return m.name }

func (m *mockProvider) SearchTracks(ctx context.Context, query string) ([]dto.ProviderTrack, error) {
	m.calls.Add(1)
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

func (m *mockProvider) FetchArtist(ctx context.Context, id, name string) (*dto.ProviderArtist, error) {
	m.calls.Add(1)
	if m.artistFn != nil {
		return m.artistFn(ctx, id, name)
	}
	return nil, nil
}

func (m *mockProvider) FetchArtistReleases(ctx context.Context, artistID string, limit int) ([]dto.ProviderRelease, error) {
	m.calls.Add(1)
	m.releasesCalls.Store(artistID, struct{}{})
	if m.releasesFn != nil {
		return m.releasesFn(ctx, artistID, limit)
	}
	return nil, nil
}

func (m *mockProvider) FetchAlbum(ctx context.Context, albumID string) (*dto.AlbumDetails, error) {
	m.calls.Add(1)
	if m.albumFn != nil {
		return m.albumFn(ctx, albumID)
	}
	return nil, nil
}

func (m *mockProvider) FetchArtistTopTracks(ctx context.Context, artistID string, limit int) ([]dto.ProviderTrack, error) {
	m.calls.Add(1)
	if m.topTracksFn != nil {
		return m.topTracksFn(ctx, artistID, limit)
	}
	return nil, nil
}

func (m *mockProvider) CheckHealth(ctx context.Context) provider.Health {
	m.calls.Add(1)
	if m.healthFn != nil {
		return m.healthFn(ctx)
	}
	return provider.Health{Status: provider.HealthOK}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSleeper captures requested backoff delays without sleeping.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

// recordingSink captures attempt events.
type recordingSink struct {
	mu     sync.Mutex
	events []AttemptEvent
}

func (s *recordingSink) RecordAttempt(_ context.Context, ev AttemptEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) recorded() []AttemptEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AttemptEvent, len(s.events))
	copy(out, s.events)
	return out
}

func newTestGateway(t *testing.T, cfg Config, providers []provider.TrackProvider, opts ...Option) *Gateway {
	t.Helper()
	reg := provider.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	opts = append([]Option{WithRandom(func() float64 { return 0.5 })}, opts...)
	g, err := New(reg, cfg, discardLogger(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func testConfig(p RetryPolicy) Config {
	return Config{MaxConcurrency: 4, Default: p}
}

func dependencyErr(name provider.ProviderName) error {
	return provider.NewError(name, provider.KindDependency, "upstream unavailable")
}

func track(source, title string) dto.ProviderTrack {
	return dto.ProviderTrack{Source: source, Title: title}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
