package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fabricacollective/amplify/internal/metrics"
	"github.com/fabricacollective/amplify/internal/origin"
)

// OriginMiddleware rejects cross-site mutating requests whose Origin or
// Referer does not match the allow-list. It is the outermost gate stage:
// a rejected request is never authenticated, rate limited, or metered.
type OriginMiddleware struct {
	guard  *origin.Guard
	logger *slog.Logger
}

// NewOriginMiddleware creates a new OriginMiddleware instance.
func NewOriginMiddleware(guard *origin.Guard, logger *slog.Logger) *OriginMiddleware {
	return &OriginMiddleware{
		guard:  guard,
		logger: logger,
	}
}

// Handler returns middleware enforcing the origin allow-list.
//
// Safe methods pass through untouched; browsers only need cross-site
// protection on state changes.
func (m *OriginMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		originHeader := r.Header.Get("Origin")
		referer := r.Header.Get("Referer")

		if !m.guard.IsAllowed(originHeader, referer) {
			m.logger.Warn("request rejected by origin check",
				"origin", originHeader,
				"referer", referer,
				"path", r.URL.Path,
				"ip", getClientIP(r),
			)
			metrics.GateRejectionsTotal.WithLabelValues("origin").Inc()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "Forbidden - origin not allowed",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
