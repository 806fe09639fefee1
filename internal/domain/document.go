package domain

import (
	"encoding/json"
	"strings"
	"unicode"
)

// Document is a scientific-literature record destined for the
// document/author catalog. The conflict key is DOI when present; otherwise
// documents are matched heuristically on (normalized title, year, first
// author).
type Document struct {
	DOI       string
	Title     string
	Year      int
	Venue     string
	Citations int
	URL       string
	Authors   []string // in author order
	Raw       json.RawMessage
}

// FirstAuthor returns the first listed author, or "" when none are known.
func (d Document) FirstAuthor() string {
	if len(d.Authors) == 0 {
		return ""
	}
	return d.Authors[0]
}

// NormalizeTitle lowercases a title and collapses all non-alphanumeric runs
// to single spaces, producing the heuristic match key used when a document
// has no DOI.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	space := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		} else {
			space = true
		}
	}
	return b.String()
}
