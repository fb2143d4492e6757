package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CollapseWhitespace trims s and replaces every run of whitespace inside it
// with a single space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// AfterLast returns the trimmed text after the last occurrence of sep, or the
// trimmed input when sep does not occur.
func AfterLast(s, sep string) string {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[idx+len(sep):])
}

// AfterFirst returns the text after the first occurrence of sep and whether
// sep was found.
func AfterFirst(s, sep string) (string, bool) {
	_, after, found := strings.Cut(s, sep)
	return after, found
}
