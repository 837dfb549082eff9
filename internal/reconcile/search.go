package reconcile

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/gateway"
	"github.com/sydlexius/tributary/internal/match"
	"github.com/sydlexius/tributary/internal/provider"
)

// TrackSearcher runs one search against several providers.
// gateway.Gateway implements it.
type TrackSearcher interface {
	SearchMany(ctx context.Context, names []provider.ProviderName, query string) *gateway.AggregatedResponse
}

// ScoredTrack is a search hit with its relevance score.
type ScoredTrack struct {
	Track     dto.ProviderTrack `json:"track"`
	Relevance float64           `json:"relevance"`
}

// SearchResult is an aggregated search ordered by relevance.
type SearchResult struct {
	Query     string                           `json:"query"`
	Tracks    []ScoredTrack                    `json:"tracks"`
	Errors    map[provider.ProviderName]string `json:"errors,omitempty"`
	Status    gateway.Status                   `json:"status"`
	Retryable bool                             `json:"retryable"`
}

// MatchResult is an aggregated search ranked by the matching engine.
type MatchResult struct {
	Query     string                           `json:"query"`
	Results   []match.Result                   `json:"results"`
	Errors    map[provider.ProviderName]string `json:"errors,omitempty"`
	Status    gateway.Status                   `json:"status"`
	Retryable bool                             `json:"retryable"`
}

// Searcher answers free-text searches across providers.
type Searcher struct {
	gw        TrackSearcher
	providers []provider.ProviderName
	logger    *slog.Logger
}

// NewSearcher creates a Searcher. providers is used when a call names none.
func NewSearcher(gw TrackSearcher, providers []provider.ProviderName, logger *slog.Logger) *Searcher {
	return &Searcher{
		gw:        gw,
		providers: providers,
		logger:    logger.With(slog.String("component", "searcher")),
	}
}

// Search queries every provider and orders the combined tracks by
// descending relevance. Ties keep provider order.
func (s *Searcher) Search(ctx context.Context, query string, providers []provider.ProviderName) (*SearchResult, error) {
	if _, err := match.ParseQuery(query); err != nil {
		return nil, err
	}
	resp := s.gw.SearchMany(ctx, s.resolve(providers), query)

	tracks := make([]ScoredTrack, len(resp.Tracks))
	for i, t := range resp.Tracks {
		tracks[i] = ScoredTrack{Track: t, Relevance: match.ComputeRelevanceScore(query, t)}
	}
	slices.SortStableFunc(tracks, func(a, b ScoredTrack) int {
		return cmp.Compare(b.Relevance, a.Relevance)
	})

	s.logger.Debug("search ranked",
		slog.String("query", query),
		slog.Int("tracks", len(tracks)),
		slog.String("status", string(resp.Status)))
	return &SearchResult{
		Query:     query,
		Tracks:    tracks,
		Errors:    errorStrings(resp.Errors),
		Status:    resp.Status,
		Retryable: resp.Retryable(),
	}, nil
}

// Match queries every provider and ranks the combined tracks against the
// parsed query. The query is validated before any provider is called.
func (s *Searcher) Match(ctx context.Context, query string, providers []provider.ProviderName, opts match.Options) (*MatchResult, error) {
	q, err := match.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("match options: %w", err)
	}
	resp := s.gw.SearchMany(ctx, s.resolve(providers), query)

	results, err := match.RankQuery(q, resp.Tracks, opts)
	if err != nil {
		return nil, fmt.Errorf("ranking %q: %w", query, err)
	}

	s.logger.Debug("match ranked",
		slog.String("query", query),
		slog.Int("candidates", len(resp.Tracks)),
		slog.String("status", string(resp.Status)))
	return &MatchResult{
		Query:     query,
		Results:   results,
		Errors:    errorStrings(resp.Errors),
		Status:    resp.Status,
		Retryable: resp.Retryable(),
	}, nil
}

func (s *Searcher) resolve(providers []provider.ProviderName) []provider.ProviderName {
	if len(providers) > 0 {
		return providers
	}
	return s.providers
}
