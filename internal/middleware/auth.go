package middleware

import (
	"log/slog"
	"net/http"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/handler"
	"github.com/fabricacollective/amplify/internal/metrics"
	"github.com/fabricacollective/amplify/internal/service"
)

// AuthMiddleware resolves Authorization: Bearer session tokens to users.
type AuthMiddleware struct {
	userService service.UserService
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(userService service.UserService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		logger:      logger,
	}
}

// WithUser attempts to resolve the bearer token and stores the user in the
// request context. The request continues either way; use this on routes
// that serve both authenticated and anonymous callers.
//
// An invalid or expired token is treated the same as no token. The rate
// limiter behind this stage then keys the request by IP instead of user,
// so a forged token never buys a higher limit.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userService.GetBySessionToken(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// RequireUser rejects unauthenticated requests with 401. Must run after
// WithUser in the stack.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			metrics.GateRejectionsTotal.WithLabelValues("auth").Inc()
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
