// Package sanitize cleans free text produced outside the system before it is
// stored for display.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes tags, decodes entities and removes tags that were hidden
// behind an entity encoding.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	return htmlTagRegex.ReplaceAllString(result, "")
}

// Text strips markup and control characters and collapses runs of
// whitespace to one space.
func Text(s string) string {
	stripped := StripHTML(s)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, stripped)
	return strings.Join(strings.Fields(cleaned), " ")
}
