// Package origin validates the Origin/Referer headers of mutating requests
// against an allow-list, as a CSRF mitigation.
//
// The primary consumers are unauthenticated state-changing endpoints
// (login, signup, password reset) that have no other CSRF layer, so the
// check fails closed: a request carrying neither header is rejected.
//
// A candidate header value is allowed when it is a string-prefix match for
// any allow-list entry, when its host ends in ".vercel.app" (ephemeral
// preview deployments), or when it matches the environment-configured site
// URL. Matching on either header is sufficient; some browsers omit Origin
// on same-site navigations and Referer is the fallback.
package origin

import (
	"net/url"
	"strings"
)

// PreviewHostSuffix is the host suffix accepted for preview deployments.
const PreviewHostSuffix = ".vercel.app"

// defaultAllowed is the static allow-list of trusted origins.
// Entries are prefix-matched, so "https://amplify.fabricacollective.com"
// also covers Referer values carrying a path.
var defaultAllowed = []string{
	"https://amplify.fabricacollective.com",
	"https://www.fabricacollective.com",
	"https://fabricacollective.com",
	"http://localhost:3000",
	"http://localhost:5173",
}

// Guard holds the immutable allowed-origin set. Construct once at startup.
type Guard struct {
	allowed []string
}

// NewGuard creates a Guard from the static allow-list plus an optional
// environment-configured site URL.
func NewGuard(siteURL string) *Guard {
	allowed := make([]string, len(defaultAllowed))
	copy(allowed, defaultAllowed)

	siteURL = strings.TrimSpace(strings.TrimSuffix(siteURL, "/"))
	if siteURL != "" {
		allowed = append(allowed, siteURL)
	}

	return &Guard{allowed: allowed}
}

// IsAllowed reports whether a request with the given Origin and Referer
// header values may proceed. Either header matching is sufficient; both
// absent means rejection.
func (g *Guard) IsAllowed(origin, referer string) bool {
	if origin == "" && referer == "" {
		return false
	}
	if origin != "" && g.matches(origin) {
		return true
	}
	if referer != "" && g.matches(referer) {
		return true
	}
	return false
}

// matches checks a single header value against the allow-list and the
// preview-host rule.
func (g *Guard) matches(candidate string) bool {
	for _, entry := range g.allowed {
		if strings.HasPrefix(candidate, entry) {
			return true
		}
	}
	return isPreviewHost(candidate)
}

// isPreviewHost reports whether the candidate URL's host ends in
// ".vercel.app". Unparseable values never match.
func isPreviewHost(candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host != "" && strings.HasSuffix(host, PreviewHostSuffix)
}
