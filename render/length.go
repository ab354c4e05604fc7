package render

import (
	"regexp"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// LengthFunc measures the cost of a string against a truncation budget.
type LengthFunc func(string) int

var (
	tagPattern   = regexp.MustCompile(`<[^<>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// RuneLength counts characters.
func RuneLength(s string) int {
	return utf8.RuneCountInString(s)
}

// ClearLength counts the characters a reader sees: tags are free and an
// entity reference costs one.
func ClearLength(s string) int {
	return utf8.RuneCountInString(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

// PlainText strips tags, collapses whitespace and decodes entities.
func PlainText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}
