package match

import (
	"strings"

	"github.com/sydlexius/tributary/internal/dto"
)

var losslessFormats = map[string]bool{
	"flac": true,
	"alac": true,
	"ape":  true,
	"wav":  true,
	"aiff": true,
	"aif":  true,
	"wv":   true,
	"dsf":  true,
	"dff":  true,
}

const (
	losslessNudge    = 0.05
	highBitrate      = 320
	highBitrateNudge = 0.03
	lowBitrate       = 128
	lowBitrateNudge  = -0.05
)

// ComputeRelevanceScore is a cheap single-candidate score for aggregated
// search results: weighted title, artist and album similarity nudged by the
// best download candidate's format and bitrate. It returns 0 for an empty
// query.
func ComputeRelevanceScore(query string, t dto.ProviderTrack) float64 {
	q, err := ParseQuery(query)
	if err != nil {
		return 0
	}
	pq := prepare(q)
	base := ratio(pq.title, canonicalText(t.Title))*TitleWeight +
		artistSimilarity(pq.artist, t.Artists)*ArtistWeight +
		optionalSimilarity(pq.album, canonicalText(t.Album))*AlbumWeight
	return clamp01(base + formatNudge(t.Candidates))
}

// formatNudge is the largest nudge any candidate earns.
func formatNudge(cands []dto.TrackCandidate) float64 {
	if len(cands) == 0 {
		return 0
	}
	best := -1.0
	for _, c := range cands {
		n := 0.0
		if losslessFormats[strings.ToLower(c.Format)] {
			n += losslessNudge
		}
		if c.BitrateKbps != nil {
			switch {
			case *c.BitrateKbps >= highBitrate:
				n += highBitrateNudge
			case *c.BitrateKbps > 0 && *c.BitrateKbps < lowBitrate:
				n += lowBitrateNudge
			}
		}
		best = max(best, n)
	}
	return best
}
