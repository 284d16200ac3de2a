// Package sanitize cleans free-text answers from lead forms before storage.
package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// Text strips markup and control characters and collapses whitespace.
func Text(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	// Entities can hide tags.
	s = tagPattern.ReplaceAllString(html.UnescapeString(s), "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// Truncate cleans s with Text and caps it at maxRunes runes.
func Truncate(s string, maxRunes int) string {
	s = Text(s)
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:maxRunes]))
}
