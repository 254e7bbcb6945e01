// Package sanitize turns feed markup into plain text.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Ellipsis marks a truncated string.
const Ellipsis = "..."

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// Only this entity set is decoded, in this order; anything else is left
	// as written.
	entities = [][2]string{
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", `"`},
		{"&apos;", "'"},
		{"&#39;", "'"},
		{"&nbsp;", " "},
	}
)

// Clean strips tags, decodes common entities and collapses whitespace.
func Clean(raw string) string {
	s := tagPattern.ReplaceAllString(raw, "")
	s = unescape(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// unescape applies each replacement in turn, so "&amp;lt;" decodes to "<".
func unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	for _, e := range entities {
		s = strings.ReplaceAll(s, e[0], e[1])
	}
	return s
}

// Truncate cuts s to max characters and appends Ellipsis when it was longer.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + Ellipsis
}

// Cap cuts s to at most max characters.
func Cap(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
