package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var reBreak = regexp.MustCompile(`(?i)<br\s*/?>`)

// StripHTML converts provider descriptions (AniList sends <br>, <i>, <b>) into plain text.
// Line breaks are kept as newlines.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}

	s = reBreak.ReplaceAllString(s, "\n")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	lines := strings.Split(doc.Text(), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			// collapse runs of empty lines into one paragraph break
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, l)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
