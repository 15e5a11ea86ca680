package normalize

import (
	"net/url"
	"strings"
)

// CanonicalURL returns the identity key for an entry URL: tracking query
// parameters (utm_*, ref, source) are removed and the rest is re-encoded in
// its original order. Scheme, host and path are kept as written apart from
// lower-casing the scheme. Empty input yields "". URLs that cannot be parsed
// are returned trimmed but otherwise unchanged.
func CanonicalURL(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}

	u, err := url.Parse(value)
	if err != nil {
		return value
	}

	rest, fragment, _ := strings.Cut(value, "#")
	base, query, _ := strings.Cut(rest, "?")
	if u.Scheme != "" {
		base = u.Scheme + base[len(u.Scheme):]
	}

	out := base
	if q := filterQuery(query); q != "" {
		out += "?" + q
	}
	if fragment != "" {
		out += "#" + fragment
	}
	return out
}

func filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawVal, _ := strings.Cut(pair, "=")
		key := unescapeComponent(rawKey)
		if isTrackingKey(key) {
			continue
		}
		kept = append(kept, url.QueryEscape(key)+"="+url.QueryEscape(unescapeComponent(rawVal)))
	}
	return strings.Join(kept, "&")
}

func isTrackingKey(key string) bool {
	lowered := strings.ToLower(key)
	if strings.HasPrefix(lowered, "utm_") {
		return true
	}
	return lowered == "ref" || lowered == "source"
}

func unescapeComponent(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}
