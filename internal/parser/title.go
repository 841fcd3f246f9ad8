package parser

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reBrackets = regexp.MustCompile(`\[.*?\]`)
	reParens   = regexp.MustCompile(`\(.*?\)`)
	reSeason   = regexp.MustCompile(`(?i)(\bseason\s*\d+|\bs\d{1,2}\b|第\s*\d+\s*季|\bpart\s*\d+)`)
	reSpaces   = regexp.MustCompile(`\s+`)
	reNonSlug  = regexp.MustCompile(`[^a-z0-9]+`)
)

// CleanTitle removes release tags like [Group], (2024) or "Season 2" to get a search-friendly title.
func CleanTitle(raw string) string {
	s := reBrackets.ReplaceAllString(raw, "")
	s = reParens.ReplaceAllString(s, "")
	s = reSeason.ReplaceAllString(s, "")

	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	s = strings.Trim(s, "-: ")

	if s == "" {
		return strings.TrimSpace(raw) // Fallback if we stripped everything
	}
	return s
}

// Slugify turns a title into a lowercase ASCII url segment.
// Titles without any latin characters produce an empty string.
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, title)
	if err != nil {
		s = title
	}
	s = strings.ToLower(s)
	s = reNonSlug.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 80 {
		s = strings.TrimRight(s[:80], "-")
	}
	return s
}

// SameTitle compares two titles ignoring case, punctuation and release tags.
func SameTitle(a, b string) bool {
	na, nb := Slugify(CleanTitle(a)), Slugify(CleanTitle(b))
	return na != "" && na == nb
}
