package render

import (
	"fmt"
	"regexp"
	"strings"
)

// A word is a run of separators followed by a run of word characters.
// Tags and entity references are indivisible separators, so a cut never
// lands inside one.
var wordPattern = regexp.MustCompile(`(?:<[^<>]*>|&#?[0-9A-Za-z]+;|[^\p{L}\p{M}\p{N}_])*[\p{L}\p{M}\p{N}_]+`)

// Truncate shortens s to at most maxLen, as measured by length, without
// splitting words, and appends suffix when anything was cut. The cost of the
// kept prefix is the sum of its words' costs.
func Truncate(s string, maxLen int, suffix string, length LengthFunc) (string, error) {
	if length(s) <= maxLen {
		return s, nil
	}

	suffixLen := length(suffix)
	if maxLen < suffixLen {
		return "", fmt.Errorf("%w: length %d is smaller than suffix %q", ErrContractViolation, maxLen, suffix)
	}

	var b strings.Builder
	used := 0
	for _, word := range wordPattern.FindAllString(s, -1) {
		n := length(word)
		if used+n+suffixLen > maxLen {
			break
		}
		b.WriteString(word)
		used += n
	}
	b.WriteString(suffix)
	return b.String(), nil
}
