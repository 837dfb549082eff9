// Package gateway wraps provider adapters behind a single call surface that
// applies per-provider timeout, retry and backoff policy, a global cap on
// in-flight calls and a uniform error taxonomy.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

// Gateway dispatches calls to registered providers.
type Gateway struct {
	registry *provider.Registry
	cfg      Config
	sem      *semaphore.Weighted
	sink     Sink
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	random   func() float64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSink sets the attempt event sink.
func WithSink(s Sink) Option {
	return func(g *Gateway) {
		if s != nil {
			g.sink = s
		}
	}
}

// WithSleeper replaces the backoff sleep. The function must return early
// with the context error when ctx is done.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) { g.sleep = fn }
}

// WithRandom replaces the jitter source. fn must return values in [0,1).
func WithRandom(fn func() float64) Option {
	return func(g *Gateway) { g.random = fn }
}

// New creates a Gateway over the providers in reg.
func New(reg *provider.Registry, cfg Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}
	g := &Gateway{
		registry: reg,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		sink:     nopSink{},
		logger:   logger.With(slog.String("component", "gateway")),
		sleep:    sleepContext,
		random:   rand.Float64,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Policy returns the retry policy applied to the named provider.
func (g *Gateway) Policy(name provider.ProviderName) RetryPolicy {
	return g.cfg.PolicyFor(name)
}

// Search runs a track search against one provider.
func (g *Gateway) Search(ctx context.Context, name provider.ProviderName, query string) ([]dto.ProviderTrack, error) {
	return call(ctx, g, name, provider.OpSearch, func(ctx context.Context, p provider.TrackProvider) ([]dto.ProviderTrack, error) {
		return p.SearchTracks(ctx, query)
	})
}

// FetchArtist looks an artist up by id, or by name when id is empty. A nil
// artist with a nil error means the provider had no match.
func (g *Gateway) FetchArtist(ctx context.Context, name provider.ProviderName, id, artistName string) (*dto.ProviderArtist, error) {
	return call(ctx, g, name, provider.OpFetchArtist, func(ctx context.Context, p provider.TrackProvider) (*dto.ProviderArtist, error) {
		return p.FetchArtist(ctx, id, artistName)
	})
}

// FetchArtistReleases lists an artist's releases on one provider.
func (g *Gateway) FetchArtistReleases(ctx context.Context, name provider.ProviderName, artistID string, limit int) ([]dto.ProviderRelease, error) {
	return call(ctx, g, name, provider.OpFetchArtistReleases, func(ctx context.Context, p provider.TrackProvider) ([]dto.ProviderRelease, error) {
		return p.FetchArtistReleases(ctx, artistID, limit)
	})
}

// FetchAlbum fetches one album with its tracks.
func (g *Gateway) FetchAlbum(ctx context.Context, name provider.ProviderName, albumID string) (*dto.AlbumDetails, error) {
	return call(ctx, g, name, provider.OpFetchAlbum, func(ctx context.Context, p provider.TrackProvider) (*dto.AlbumDetails, error) {
		return p.FetchAlbum(ctx, albumID)
	})
}

// FetchArtistTopTracks fetches an artist's most popular tracks.
func (g *Gateway) FetchArtistTopTracks(ctx context.Context, name provider.ProviderName, artistID string, limit int) ([]dto.ProviderTrack, error) {
	return call(ctx, g, name, provider.OpFetchArtistTopTracks, func(ctx context.Context, p provider.TrackProvider) ([]dto.ProviderTrack, error) {
		return p.FetchArtistTopTracks(ctx, artistID, limit)
	})
}

// CheckHealth probes one provider with a single attempt. When the attempt
// itself fails the returned Health is down and the error says why.
func (g *Gateway) CheckHealth(ctx context.Context, name provider.ProviderName) (provider.Health, error) {
	p := g.registry.Get(name)
	if p == nil {
		return provider.Health{Status: provider.HealthDown}, unknownProvider(name, provider.OpCheckHealth)
	}
	policy := g.cfg.PolicyFor(name)
	policy.RetryMax = 0
	h, err := retry(ctx, g, p, provider.OpCheckHealth, policy, func(ctx context.Context, p provider.TrackProvider) (provider.Health, error) {
		return p.CheckHealth(ctx), nil
	})
	if err != nil {
		return provider.Health{Status: provider.HealthDown, Details: map[string]any{"error": err.Error()}}, err
	}
	return h, nil
}

// Status summarizes a fan-out call.
type Status string

// Fan-out statuses.
const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// statusOf derives the status from the number of failures out of total.
func statusOf(failed, total int) Status {
	switch {
	case failed == 0:
		return StatusOK
	case failed < total:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// ProviderOutcome is one provider's share of a fan-out search.
type ProviderOutcome struct {
	Provider provider.ProviderName
	Tracks   []dto.ProviderTrack
	Err      error
}

// AggregatedResponse is the result of SearchMany. Failures are data here:
// SearchMany itself never returns an error.
type AggregatedResponse struct {
	Query    string
	Tracks   []dto.ProviderTrack // successful tracks in provider order
	Errors   map[provider.ProviderName]error
	Outcomes []ProviderOutcome // in request order
	Status   Status
}

// Retryable reports whether any failed provider failed transiently.
func (r *AggregatedResponse) Retryable() bool {
	for _, err := range r.Errors {
		if IsRetryable(err) {
			return true
		}
	}
	return false
}

// SearchMany runs the same search against every listed provider
// concurrently. Each call is still throttled by the shared semaphore, and a
// failure in one provider never cancels the others.
func (g *Gateway) SearchMany(ctx context.Context, names []provider.ProviderName, query string) *AggregatedResponse {
	outcomes := make([]ProviderOutcome, len(names))
	var eg errgroup.Group
	for i, name := range names {
		eg.Go(func() error {
			tracks, err := g.Search(ctx, name, query)
			outcomes[i] = ProviderOutcome{Provider: name, Tracks: tracks, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	resp := &AggregatedResponse{
		Query:    query,
		Errors:   make(map[provider.ProviderName]error),
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		if o.Err != nil {
			resp.Errors[o.Provider] = o.Err
			continue
		}
		resp.Tracks = append(resp.Tracks, o.Tracks...)
	}
	resp.Status = statusOf(len(resp.Errors), len(names))
	g.logger.Debug("search fan-out complete",
		slog.String("query", query),
		slog.Int("providers", len(names)),
		slog.Int("failed", len(resp.Errors)),
		slog.Int("tracks", len(resp.Tracks)),
		slog.String("status", string(resp.Status)))
	return resp
}

// call resolves the provider and runs fn under its retry policy.
func call[T any](ctx context.Context, g *Gateway, name provider.ProviderName, op provider.Operation, fn func(context.Context, provider.TrackProvider) (T, error)) (T, error) {
	p := g.registry.Get(name)
	if p == nil {
		var zero T
		return zero, unknownProvider(name, op)
	}
	return retry(ctx, g, p, op, g.cfg.PolicyFor(name), fn)
}

func retry[T any](ctx context.Context, g *Gateway, p provider.TrackProvider, op provider.Operation, policy RetryPolicy, fn func(context.Context, provider.TrackProvider) (T, error)) (T, error) {
	var zero T
	name := p.Name()
	maxAttempts := policy.MaxAttempts()
	var lastErr *Error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		v, ran, err := runAttempt(ctx, g, p, policy, fn)
		if !ran {
			// The parent context ended while waiting for a slot.
			if lastErr != nil {
				return zero, lastErr
			}
			e := classify(name, op, err)
			e.Attempts = attempt - 1
			return zero, e
		}
		elapsed := time.Since(start)
		if err == nil {
			g.sink.RecordAttempt(ctx, attemptEvent(name, op, attempt, maxAttempts, elapsed, nil))
			return v, nil
		}

		lastErr = classify(name, op, err)
		lastErr.Provider, lastErr.Operation = name, op
		lastErr.Attempts = attempt
		g.sink.RecordAttempt(ctx, attemptEvent(name, op, attempt, maxAttempts, elapsed, lastErr))

		if !lastErr.Retryable() || attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		if err := g.sleep(ctx, policy.Backoff(attempt, g.random())); err != nil {
			break
		}
	}
	return zero, lastErr
}

// runAttempt runs fn once under the semaphore and the policy deadline. The
// call runs in its own goroutine, which holds the semaphore slot until fn
// returns even if the deadline fires first. ran is false when no slot could
// be acquired.
func runAttempt[T any](ctx context.Context, g *Gateway, p provider.TrackProvider, policy RetryPolicy, fn func(context.Context, provider.TrackProvider) (T, error)) (v T, ran bool, err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return v, false, err
	}

	actx, cancel := ctx, context.CancelFunc(func() {})
	if d := policy.Timeout(); d > 0 {
		actx, cancel = context.WithTimeout(ctx, d)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer g.sem.Release(1)
		v, err := fn(actx, p)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			// The adapter noticed the deadline but may have reported it as
			// something other than a timeout.
			return v, true, timeoutError(p.Name(), policy.Timeout(), r.err)
		}
		return r.v, true, r.err
	case <-actx.Done():
		select {
		case r := <-done:
			if ctx.Err() != nil || r.err == nil {
				return r.v, true, r.err
			}
		default:
		}
		if ctx.Err() == nil {
			return v, true, timeoutError(p.Name(), policy.Timeout(), actx.Err())
		}
		return v, true, ctx.Err()
	}
}

func timeoutError(name provider.ProviderName, d time.Duration, cause error) error {
	return &provider.Error{
		Kind:     provider.KindTimeout,
		Provider: name,
		Cause:    fmt.Errorf("attempt exceeded %s: %w", d, cause),
	}
}

func unknownProvider(name provider.ProviderName, op provider.Operation) *Error {
	return &Error{
		Kind:      provider.KindValidation,
		Provider:  name,
		Operation: op,
		Cause:     fmt.Errorf("unknown provider %q", name),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
