package bot

import (
	"strings"
	"unicode"
)

// SiteTable maps lowercase aliases to API site names.
type SiteTable struct {
	Aliases     map[string]string
	DefaultSite string
}

// Detect picks the target site from the first word of query. When that word
// is not a known alias the whole query is searched on the default site.
func (t SiteTable) Detect(query string) (site, rest string) {
	query = strings.TrimSpace(query)
	first, remainder := query, ""
	if i := strings.IndexFunc(query, unicode.IsSpace); i >= 0 {
		first, remainder = query[:i], query[i:]
	}
	if s, ok := t.Aliases[strings.ToLower(first)]; ok {
		return s, strings.TrimSpace(remainder)
	}
	return t.DefaultSite, query
}
