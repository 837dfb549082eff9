package match

import (
	"strings"

	"github.com/sydlexius/tributary/internal/dto"
)

// Query is what a candidate is scored against. Empty fields are unknown and
// score neutrally.
type Query struct {
	Title       string
	Artist      string
	Album       string
	Year        *int
	EditionTags []string
}

// ParseQuery splits free text of the form "Artist - Title (Edition)" on the
// first " - ". Without a separator the whole text is the title. Edition tags
// come from the full text.
func ParseQuery(text string) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, &dto.InvalidInputError{Kind: "query", Message: "must not be empty"}
	}
	q := Query{Title: text, EditionTags: dto.ExtractEditionTags(text)}
	if artist, title, ok := strings.Cut(text, " - "); ok {
		artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
		if artist != "" && title != "" {
			q.Artist, q.Title = artist, title
		}
	}
	return q, nil
}

func (q Query) validate() error {
	if strings.TrimSpace(q.Title) == "" {
		return &dto.InvalidInputError{Kind: "query", Field: "title", Message: "must not be empty"}
	}
	return nil
}

// prepared holds the comparison forms of a query.
type prepared struct {
	title  string
	artist string
	album  string
	year   *int
	tags   []string
}

func prepare(q Query) prepared {
	p := prepared{
		title:  canonicalText(q.Title),
		artist: canonicalText(q.Artist),
		album:  canonicalText(q.Album),
		tags:   dto.ExtractEditionTags(q.Title+" "+q.Album, q.EditionTags...),
	}
	if q.Year != nil && *q.Year > 0 {
		p.year = q.Year
	}
	return p
}
