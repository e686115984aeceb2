package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/metrics"
	"github.com/fabricacollective/amplify/internal/ratelimit"
)

// Policy describes the rate limit applied to one route. Authenticated
// requests are keyed by user ID; anonymous requests by client IP, usually
// with a tighter limit.
type Policy struct {
	// Route names the policy in logs and metrics, e.g. "generate".
	Route string

	// Limit applies to authenticated requests.
	Limit int

	// AnonLimit applies to anonymous requests. Zero means: use Limit.
	AnonLimit int

	// Window is the sliding window duration.
	Window time.Duration
}

// Route policies. Windows are all one minute; limits differ by the cost
// and abuse potential of the endpoint.
var (
	PolicyLogin         = Policy{Route: "login", Limit: 5, Window: time.Minute}
	PolicySignup        = Policy{Route: "signup", Limit: 5, Window: time.Minute}
	PolicyPasswordReset = Policy{Route: "password_reset", Limit: 3, Window: time.Minute}
	PolicyGenerate      = Policy{Route: "generate", Limit: 10, AnonLimit: 5, Window: time.Minute}
	PolicyRemix         = Policy{Route: "remix", Limit: 10, AnonLimit: 5, Window: time.Minute}
)

// RateLimitMiddleware applies per-route policies backed by one shared
// sliding-window limiter. Must run after WithUser so authenticated
// requests are keyed by user rather than IP.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware instance.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns middleware enforcing the given policy.
func (m *RateLimitMiddleware) Limit(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier, limit := m.resolveIdentity(r, policy)

			result := m.limiter.Check(identifier, limit, policy.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				m.logger.Warn("rate limit exceeded",
					"route", policy.Route,
					"identifier", identifier,
					"path", r.URL.Path,
				)
				metrics.GateRejectionsTotal.WithLabelValues("rate_limit").Inc()
				metrics.RateLimitedTotal.WithLabelValues(policy.Route).Inc()

				retryAfter := int(math.Ceil(result.Reset.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolveIdentity picks the limiter key and effective limit. A user key
// and an IP key never collide, so one user's exhaustion cannot spill onto
// the anonymous pool behind the same NAT and vice versa.
func (m *RateLimitMiddleware) resolveIdentity(r *http.Request, policy Policy) (string, int) {
	if user := auth.GetUser(r.Context()); user != nil {
		return fmt.Sprintf("user:%s", user.ID), policy.Limit
	}
	limit := policy.AnonLimit
	if limit == 0 {
		limit = policy.Limit
	}
	return fmt.Sprintf("ip:%s", getClientIP(r)), limit
}
