package render

import "strings"

// CloseTrailingTag closes the last tag in s if it is an opening tag with only
// text after it.
//
// Only one tag is ever repaired. Transduce never opens an inline tag while
// another is open, so a prefix of its output has at most one open tag, and
// that tag is the last one in the prefix.
func CloseTrailingTag(s string) string {
	i := strings.LastIndexByte(s, '<')
	if i < 0 {
		return s
	}
	j := strings.IndexByte(s[i:], '>')
	if j < 0 {
		return s
	}

	name := s[i+1 : i+j]
	end := 0
	for end < len(name) && isTagNameByte(name[end], end == 0) {
		end++
	}
	if end == 0 {
		return s
	}
	return s + "</" + name[:end] + ">"
}

func isTagNameByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
