package model

import (
	"sort"
	"strings"
)

// ResourceID addresses a resource: a logical path plus optional query
// parameters, e.g. "targets/preview?min_mag=4.0&uninsured=false".
type ResourceID struct {
	Path  string
	Query map[string]string
}

// ParseResourceID splits s on the first "?". The query part is split on "&"
// and each pair on its first "="; pairs without "=" are ignored. Values are
// taken as written, without unescaping.
func ParseResourceID(s string) ResourceID {
	id := ResourceID{Query: map[string]string{}}

	path, query, found := strings.Cut(s, "?")
	id.Path = path
	if !found {
		return id
	}

	for _, pair := range strings.Split(query, "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		id.Query[key] = value
	}
	return id
}

// Param returns the query value for key, or def when it is absent.
func (id ResourceID) Param(key, def string) string {
	if v, ok := id.Query[key]; ok {
		return v
	}
	return def
}

// String renders the identifier with query keys in sorted order.
func (id ResourceID) String() string {
	if len(id.Query) == 0 {
		return id.Path
	}

	keys := make([]string, 0, len(id.Query))
	for k := range id.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(id.Path)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(id.Query[k])
	}
	return b.String()
}
