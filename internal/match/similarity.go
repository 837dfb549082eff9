package match

import (
	"regexp"
	"strings"

	"github.com/sydlexius/tributary/internal/dto"
)

var (
	bracketed   = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)
	dashSuffix  = regexp.MustCompile(`\s+-\s+[^-]+$`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// canonicalText is the form text takes before similarity scoring: normalized,
// with edition wording removed so that it only counts through the edition
// bonus and penalty, and punctuation dropped.
func canonicalText(s string) string {
	s = dto.NormalizeText(s)
	s = bracketed.ReplaceAllStringFunc(s, func(m string) string {
		if dto.HasEditionWord(m) {
			return " "
		}
		return m
	})
	if m := dashSuffix.FindString(s); m != "" && dto.HasEditionWord(m) {
		s = strings.TrimSuffix(s, m)
	}
	s = punctuation.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ratio is the Levenshtein similarity 1 - d/max(len) over runes. Two empty
// strings are identical.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// trigrams returns the set of 3-rune windows of s padded with spaces.
func trigrams(s string) map[string]struct{} {
	r := []rune("  " + s + " ")
	set := make(map[string]struct{}, len(r))
	for i := 0; i+3 <= len(r); i++ {
		set[string(r[i:i+3])] = struct{}{}
	}
	return set
}

// jaccard is |a ∩ b| / |a ∪ b|.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
