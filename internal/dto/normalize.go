package dto

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFallbacks covers letters that do not decompose into a base letter
// plus combining marks.
var asciiFallbacks = strings.NewReplacer(
	"ø", "o", "Ø", "O",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
	"þ", "th", "Þ", "TH",
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"‐", "-", "–", "-", "—", "-",
)

// FoldText maps s to a case-folded, accent-free form. Transformers and
// casers carry state, so fresh ones are built per call.
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = asciiFallbacks.Replace(out)
	return cases.Fold().String(out)
}

// featClause matches bracketed featuring credits: "(feat. X)", "[ft. X]", "(with X)".
var featClause = regexp.MustCompile(`(?i)\s*[(\[]\s*(?:feat\.?|featuring|ft\.?|with)\s[^)\]]*[)\]]`)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeText is the comparison form of free text: folded, without
// featuring clauses, whitespace collapsed.
func NormalizeText(s string) string {
	s = FoldText(s)
	s = featClause.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// editionWord matches the edition vocabulary as whole words.
var editionWord = regexp.MustCompile(`(?i)\b(deluxe|remaster(?:ed)?|live|special|super|ultimate|anniversary|collector(?:'s|s)?|expanded)\b`)

// canonicalTag folds spelling variants onto one tag.
func canonicalTag(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch {
	case strings.HasPrefix(t, "remaster"):
		return "remaster"
	case strings.HasPrefix(t, "collector"):
		return "collector"
	}
	return t
}

// ExtractEditionTags returns the sorted, deduplicated edition tags found in
// text merged with any explicit tags.
func ExtractEditionTags(text string, explicit ...string) []string {
	seen := make(map[string]struct{})
	for _, m := range editionWord.FindAllString(FoldText(text), -1) {
		seen[canonicalTag(m)] = struct{}{}
	}
	for _, t := range explicit {
		if c := canonicalTag(t); c != "" {
			seen[c] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// HasEditionWord reports whether s mentions any edition vocabulary word.
func HasEditionWord(s string) bool {
	return editionWord.MatchString(FoldText(s))
}

// dedupeFold drops empty entries and case-insensitive duplicates,
// keeping the first spelling seen. Accents are significant.
func dedupeFold(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		k := fold.String(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
