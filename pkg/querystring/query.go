package querystring

import (
	"net/url"
	"strings"
)

// Pair is a single key/value entry of a query string. Keys and values
// are held in decoded form.
type Pair struct {
	Key   string
	Value string
}

// Query is an ordered list of query parameters. Unlike url.Values it
// remembers the relative order of keys, so a resolved URL differs from
// its input only in the touched parameter.
type Query []Pair

// ParseQuery parses a raw query string (without the leading "?") into
// an ordered Query.
//
// Parsing is permissive: segments are split on "&", a segment without
// "=" becomes a key with an empty value, empty segments are skipped,
// and a malformed percent escape leaves the affected token verbatim
// instead of failing. Duplicate keys collapse to one pair carrying the
// last occurrence's value at the first occurrence's position.
func ParseQuery(rawQuery string) Query {
	if rawQuery == "" {
		return nil
	}
	var q Query
	index := make(map[string]int)
	for _, seg := range strings.Split(rawQuery, "&") {
		if seg == "" {
			continue
		}
		k, v, _ := strings.Cut(seg, "=")
		k, v = unescape(k), unescape(v)
		if i, ok := index[k]; ok {
			q[i].Value = v
			continue
		}
		index[k] = len(q)
		q = append(q, Pair{Key: k, Value: v})
	}
	return q
}

// unescape decodes a query token, returning it verbatim when the
// escape sequence is malformed.
func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	u, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return u
}

// Get returns the value for key and whether the key is present.
func (q Query) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (q Query) Has(key string) bool {
	_, ok := q.Get(key)
	return ok
}

// Set assigns value to key, updating the existing pair in place or
// appending a new one at the end.
func (q *Query) Set(key, value string) {
	for i := range *q {
		if (*q)[i].Key == key {
			(*q)[i].Value = value
			return
		}
	}
	*q = append(*q, Pair{Key: key, Value: value})
}

// Delete removes key. Deleting an absent key is a no-op.
func (q *Query) Delete(key string) {
	for i := range *q {
		if (*q)[i].Key == key {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return
		}
	}
}

// Encode serializes the query in order as "k=v&k=v". Keys and values
// are percent-escaped; an empty value still gets its "=" so that a
// bare flag round-trips as present-but-empty.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range q {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// SplitURL splits a raw URL into the part before the query, the raw
// query string, and the fragment. The "?" and "#" separators are not
// included in the returned components.
func SplitURL(raw string) (base, rawQuery, fragment string) {
	base = raw
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base, fragment = base[:i], base[i+1:]
	}
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base, rawQuery = base[:i], base[i+1:]
	}
	return base, rawQuery, fragment
}

// joinURL recomposes a URL from its components. The base has one
// trailing slash stripped, except a bare root path which stays "/".
// An empty query omits the "?" entirely.
func joinURL(base, rawQuery, fragment string) string {
	base = stripTrailingSlash(base)
	var b strings.Builder
	b.Grow(len(base) + len(rawQuery) + len(fragment) + 2)
	b.WriteString(base)
	if rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(rawQuery)
	}
	if fragment != "" {
		b.WriteByte('#')
		b.WriteString(fragment)
	}
	return b.String()
}

// stripTrailingSlash removes one trailing slash from the path portion
// of base. A root path is kept, both bare ("/") and at the end of an
// absolute URL ("https://example.com/").
func stripTrailingSlash(base string) string {
	if !strings.HasSuffix(base, "/") {
		return base
	}
	pathStart := 0
	if i := strings.Index(base, "://"); i >= 0 {
		j := strings.IndexByte(base[i+3:], '/')
		if j < 0 {
			return base
		}
		pathStart = i + 3 + j
	}
	if len(base)-pathStart <= 1 {
		return base
	}
	return base[:len(base)-1]
}
