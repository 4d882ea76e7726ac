package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams is the fixed drop-set of query keys considered tracking
// noise. Keys are matched case-insensitively; matching pairs are removed
// before any remaining pairs are re-emitted.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"ref":          {},
	"yclid":        {},
	"_ga":          {},
}

// Canonicalize resolves href against base and produces the canonical form
// used for admission, deduplication, and Redis keying.
//
// Fragment is stripped, host is ASCII-lowercased, tracking query parameters
// are dropped, and the surviving query pairs are re-emitted sorted by key
// (byte order) with their original percent-encoding and casing preserved.
// A parse or join failure yields ok=false: there is no canonical form for
// the input, and admission must reject it outright.
//
// Canonicalize is pure, deterministic, and idempotent:
// Canonicalize(Canonicalize(u, b)) == Canonicalize(u, b).
func Canonicalize(href, base string) (canonical string, ok bool) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	target, err := baseURL.Parse(href)
	if err != nil {
		return "", false
	}

	target.Fragment = ""
	target.RawFragment = ""
	target.Host = lowerASCII(target.Host)

	if target.RawQuery != "" {
		target.RawQuery = canonicalQuery(target.RawQuery)
	}
	target.ForceQuery = false

	return target.String(), true
}

// canonicalQuery drops tracking pairs from rawQuery and re-emits the
// remainder sorted by key, preserving each surviving pair's original
// encoding exactly as received (no re-escaping).
func canonicalQuery(rawQuery string) string {
	type pair struct{ key, raw string }
	var kept []pair

	for _, segment := range strings.Split(rawQuery, "&") {
		if segment == "" {
			continue
		}
		key := segment
		if idx := strings.IndexByte(segment, '='); idx >= 0 {
			key = segment[:idx]
		}
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			decodedKey = key
		}
		if _, dropped := trackingParams[strings.ToLower(decodedKey)]; dropped {
			continue
		}
		kept = append(kept, pair{key: decodedKey, raw: segment})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].key < kept[j].key
	})

	raws := make([]string, len(kept))
	for i, p := range kept {
		raws[i] = p.raw
	}
	return strings.Join(raws, "&")
}

// lowerASCII converts ASCII characters to lowercase without allocating
// when the input is already lowercase.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
