// Package match scores provider tracks against a query and ranks them with
// edition- and threshold-aware confidence tiers. Rankings depend only on the
// candidates' content, never on the order they were passed in.
package match

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sydlexius/tributary/internal/dto"
)

// Options tune RankCandidates.
type Options struct {
	MinArtistSim      float64 `yaml:"min_artist_sim" json:"min_artist_sim"`
	CompleteThreshold float64 `yaml:"complete_threshold" json:"complete_threshold"`
	NearlyThreshold   float64 `yaml:"nearly_threshold" json:"nearly_threshold"`
	FuzzyMax          int     `yaml:"fuzzy_max" json:"fuzzy_max"` // 0 scores every candidate
	EditionAware      bool    `yaml:"edition_aware" json:"edition_aware"`
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		MinArtistSim:      0.6,
		CompleteThreshold: 0.9,
		NearlyThreshold:   0.7,
		EditionAware:      true,
	}
}

// Validate checks that the thresholds are usable.
func (o Options) Validate() error {
	var errs []error
	if o.MinArtistSim < 0 || o.MinArtistSim > 1 {
		errs = append(errs, fmt.Errorf("min_artist_sim must be in [0,1], got %v", o.MinArtistSim))
	}
	if o.CompleteThreshold < 0 || o.CompleteThreshold > 1 {
		errs = append(errs, fmt.Errorf("complete_threshold must be in [0,1], got %v", o.CompleteThreshold))
	}
	if o.NearlyThreshold < 0 || o.NearlyThreshold > o.CompleteThreshold {
		errs = append(errs, fmt.Errorf("nearly_threshold must be in [0,complete_threshold], got %v", o.NearlyThreshold))
	}
	if o.FuzzyMax < 0 {
		errs = append(errs, fmt.Errorf("fuzzy_max must be >= 0, got %d", o.FuzzyMax))
	}
	return errors.Join(errs...)
}

// RankCandidates parses a free-text query and ranks candidates against it.
func RankCandidates(query string, candidates []dto.ProviderTrack, opts Options) ([]Result, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	return RankQuery(q, candidates, opts)
}

// scored is a candidate with everything the ordering needs.
type scored struct {
	result Result
	artist float64
	title  string
	key    string
	index  int
}

// RankQuery ranks candidates best-first against a structured query. Every
// candidate must satisfy dto.ValidateTrack.
func RankQuery(q Query, candidates []dto.ProviderTrack, opts Options) ([]Result, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	for i, c := range candidates {
		if err := dto.ValidateTrack(c); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	if err := opts.Validate(); err != nil {
		return nil, &dto.InvalidInputError{Kind: "match options", Message: err.Error()}
	}

	pq := prepare(q)
	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	if opts.FuzzyMax > 0 && len(candidates) > opts.FuzzyMax {
		idx = prefilter(pq, candidates, opts.FuzzyMax)
	}

	items := make([]scored, 0, len(idx))
	for _, i := range idx {
		c := candidates[i]
		s := score(pq, c, opts.EditionAware)
		capped := pq.artist != "" && s.Artist < opts.MinArtistSim
		res, err := NewResult(c, s, classify(s.Total(), capped, opts))
		if err != nil {
			return nil, err
		}
		items = append(items, scored{
			result: res,
			artist: s.Artist,
			title:  canonicalText(c.Title),
			key:    candidateKey(c),
			index:  i,
		})
	}

	slices.SortFunc(items, compareScored)

	out := make([]Result, len(items))
	for i, it := range items {
		out[i] = it.result
	}
	return out, nil
}

// compareScored orders by total desc, artist similarity desc, title asc,
// candidate key asc and finally input position.
func compareScored(a, b scored) int {
	if c := cmp.Compare(b.result.Total, a.result.Total); c != 0 {
		return c
	}
	if c := cmp.Compare(b.artist, a.artist); c != 0 {
		return c
	}
	if c := strings.Compare(a.title, b.title); c != 0 {
		return c
	}
	if c := strings.Compare(a.key, b.key); c != 0 {
		return c
	}
	return cmp.Compare(a.index, b.index)
}

// candidateKey is a content-derived key that separates candidates whose
// scores and titles tie.
func candidateKey(t dto.ProviderTrack) string {
	parts := []string{t.Source, t.SourceID, t.Album, strings.Join(t.Artists, "\x1f"), t.Title}
	if t.Year != nil {
		parts = append(parts, fmt.Sprint(*t.Year))
	}
	if t.DurationMS != nil {
		parts = append(parts, fmt.Sprint(*t.DurationMS))
	}
	parts = append(parts, t.EditionTags...)
	for _, c := range t.Candidates {
		parts = append(parts, c.Source, c.Username, c.DownloadURI, c.Title)
	}
	if len(t.Metadata) > 0 {
		// Map keys marshal sorted; values that cannot marshal add nothing.
		if b, err := json.Marshal(t.Metadata); err == nil {
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, "\x00")
}

// prefilter keeps the n candidates whose title and artist text share the
// most trigrams with the query.
func prefilter(q prepared, candidates []dto.ProviderTrack, n int) []int {
	qt := trigrams(strings.TrimSpace(q.artist + " " + q.title))
	type cheap struct {
		index int
		sim   float64
		key   string
	}
	all := make([]cheap, len(candidates))
	for i, c := range candidates {
		text := canonicalText(strings.Join(c.Artists, " ") + " " + c.Title)
		if q.artist == "" {
			text = canonicalText(c.Title)
		}
		all[i] = cheap{index: i, sim: jaccard(qt, trigrams(text)), key: candidateKey(c)}
	}
	slices.SortFunc(all, func(a, b cheap) int {
		if c := cmp.Compare(b.sim, a.sim); c != 0 {
			return c
		}
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})
	keep := make([]int, n)
	for i := range keep {
		keep[i] = all[i].index
	}
	return keep
}
