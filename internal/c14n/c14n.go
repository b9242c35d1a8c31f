// Package c14n canonicalizes paths so that equivalent URLs on a site share one lookup key.
package c14n

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Root is the canonical form of a site's homepage
const Root = "/"

// Canonicalize normalizes a raw path or absolute URL.
//
// The path is lower-cased, query pairs whose key is not in significant are dropped and the
// survivors are sorted by key. Query values keep their case. Fragments are discarded.
func Canonicalize(raw string, significant []string) string {
	path, query := split(raw)
	path = strings.ToLower(path)

	keep := make(map[string]bool, len(significant))
	for _, key := range significant {
		keep[key] = true
	}

	type pair struct{ key, value string }
	var pairs []pair
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		if !keep[key] {
			continue
		}
		if !hasValue {
			pairs = append(pairs, pair{key: key})
			continue
		}
		pairs = append(pairs, pair{key: key, value: "=" + value})
	}
	if len(pairs) == 0 {
		return path
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	var b strings.Builder
	b.WriteString(path)
	for i, p := range pairs {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteString(p.value)
	}
	return b.String()
}

// Hash returns the hex SHA1 digest used as the lookup key for a path
func Hash(path string) string {
	sum := sha1.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Host returns the lower-cased hostname of an absolute URL, or "" for a bare path.
// ok is false when raw looks absolute but cannot be parsed.
func Host(raw string) (host string, ok bool) {
	raw = strings.TrimSpace(raw)
	if !hasScheme(raw) {
		return "", true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

// Path returns the path and query of a path or absolute URL as given, without the fragment
func Path(raw string) string {
	path, query := split(raw)
	if query == "" {
		return path
	}
	return path + "?" + query
}

// HostPathHashes returns the raw and canonical hashes recorded for an observed path
func HostPathHashes(path string, significant []string) (pathHash, c14nPathHash string) {
	return Hash(path), Hash(Canonicalize(path, significant))
}

// split separates the path and raw query of a path or absolute URL without
// decoding either, so that the original escaping is preserved.
func split(raw string) (path, query string) {
	raw = strings.TrimSpace(raw)
	if hasScheme(raw) {
		rest := raw[strings.Index(raw, "://")+3:]
		if i := strings.IndexAny(rest, "/?#"); i >= 0 {
			raw = rest[i:]
		} else {
			raw = ""
		}
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	path, query, _ = strings.Cut(raw, "?")
	if path == "" {
		path = Root
	} else if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, query
}

func hasScheme(raw string) bool {
	i := strings.Index(raw, "://")
	if i <= 0 {
		return false
	}
	for _, r := range raw[:i] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}
