package match

import (
	"github.com/sydlexius/tributary/internal/dto"
)

// Component weights of Score.Total.
const (
	TitleWeight  = 0.6
	ArtistWeight = 0.3
	AlbumWeight  = 0.1
)

// neutral is the component score when either side lacks the field.
const neutral = 0.5

const (
	editionBonus   = 0.05
	editionPenalty = 0.05 // per tag present on one side only
	yearBonus      = 0.02
	yearPenalty    = 0.05
)

// Score is a candidate's per-component similarity plus adjustments.
type Score struct {
	Title   float64 `json:"title"`
	Artist  float64 `json:"artist"`
	Album   float64 `json:"album"`
	Bonus   float64 `json:"bonus"`   // [-1,1]
	Penalty float64 `json:"penalty"` // [0,1]
}

// Total is the weighted sum of the components plus Bonus minus Penalty,
// clamped to [0,1].
func (s Score) Total() float64 {
	return clamp01(s.Title*TitleWeight + s.Artist*ArtistWeight + s.Album*AlbumWeight + s.Bonus - s.Penalty)
}

func score(q prepared, t dto.ProviderTrack, editionAware bool) Score {
	s := Score{
		Title:  ratio(q.title, canonicalText(t.Title)),
		Artist: artistSimilarity(q.artist, t.Artists),
		Album:  optionalSimilarity(q.album, canonicalText(t.Album)),
	}

	if editionAware {
		tags := dto.ExtractEditionTags(t.Title+" "+t.Album, t.EditionTags...)
		if len(q.tags) > 0 && subset(q.tags, tags) {
			s.Bonus += editionBonus
		}
		s.Penalty += editionPenalty * float64(symmetricDifference(q.tags, tags))
	}

	if q.year != nil && t.Year != nil && *t.Year > 0 {
		if *q.year == *t.Year {
			s.Bonus += yearBonus
		} else {
			s.Penalty += yearPenalty
		}
	}

	s.Bonus = clamp(s.Bonus, -1, 1)
	s.Penalty = clamp(s.Penalty, 0, 1)
	return s
}

// artistSimilarity is the best ratio between the query artist and any of
// the candidate's artists.
func artistSimilarity(want string, artists []string) float64 {
	if want == "" || len(artists) == 0 {
		return neutral
	}
	best := 0.0
	for _, a := range artists {
		best = max(best, ratio(want, canonicalText(a)))
	}
	return best
}

func optionalSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return neutral
	}
	return ratio(a, b)
}

// subset reports whether every element of a is in b. Both are sorted.
func subset(a, b []string) bool {
	i := 0
	for _, x := range a {
		for i < len(b) && b[i] < x {
			i++
		}
		if i == len(b) || b[i] != x {
			return false
		}
	}
	return true
}

// symmetricDifference counts elements present in exactly one of two sorted
// sets.
func symmetricDifference(a, b []string) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case a[i] < b[j]:
			n++
			i++
		default:
			n++
			j++
		}
	}
	return n + (len(a) - i) + (len(b) - j)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
