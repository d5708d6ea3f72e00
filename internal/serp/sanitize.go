package serp

import (
	"regexp"
	"strings"
)

// SearchHost is the engine's own domain. Links containing it anywhere are
// treated as navigation or redirect links back into the results page. The
// substring match is coarse: unrelated hosts embedding the string are
// rejected too.
const SearchHost = "bing.com"

var (
	trackingParam    = regexp.MustCompile(`utm_[^&]*&?`)
	danglingQueryEnd = regexp.MustCompile(`[?&]$`)
)

// Clean validates a result link and strips utm_* tracking parameters. It
// returns false for empty, root-relative, self-referencing or non-http(s)
// links.
func Clean(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "/") {
		return "", false
	}
	if strings.Contains(strings.ToLower(raw), SearchHost) {
		return "", false
	}

	cleaned := stripTracking(raw)

	if !strings.HasPrefix(cleaned, "http://") && !strings.HasPrefix(cleaned, "https://") {
		return "", false
	}
	return cleaned, true
}

// stripTracking repeats both rewrites until nothing changes, so a removal
// that exposes a new match (or a new dangling separator) is handled and
// Clean stays idempotent.
func stripTracking(u string) string {
	for {
		next := trackingParam.ReplaceAllString(u, "")
		next = danglingQueryEnd.ReplaceAllString(next, "")
		if next == u {
			return u
		}
		u = next
	}
}
