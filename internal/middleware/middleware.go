// Package middleware contains the HTTP request gate for the Amplify API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed with Stack. The gate order for mutating
// endpoints is fixed: origin check, then identity resolution, then rate
// limiting, then the handler. Each stage short-circuits; a rejected
// request never reaches the stages behind it.
package middleware

import (
	"net"
	"net/http"
	"strings"
)

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided: the first middleware in the
// slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	gate := Stack(originMw.Handler, authMw.WithUser, limitMw.Limit(policy))
//	mux.Handle("POST /api/generate", gate(generateHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2.
	// The first one is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if clientIP := strings.TrimSpace(strings.Split(xff, ",")[0]); clientIP != "" {
			return clientIP
		}
	}

	// X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
