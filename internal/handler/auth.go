// This file implements the authentication endpoints.
//
// Routes:
//   - POST /api/auth/signup   -> HandleSignup
//   - POST /api/auth/login    -> HandleLogin
//   - POST /api/auth/logout   -> HandleLogout
//   - GET  /api/auth/me       -> HandleMe (requires auth)
//   - POST /api/auth/password -> HandleChangePassword (requires auth)
//   - POST /api/auth/password-reset         -> HandlePasswordResetRequest
//   - POST /api/auth/password-reset/confirm -> HandlePasswordResetConfirm
//
// Sessions are opaque bearer tokens: the raw token is returned once at
// login/signup and presented back as Authorization: Bearer.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/email"
	"github.com/fabricacollective/amplify/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	userService  service.UserService
	emailService email.Service
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService service.UserService, emailService email.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		emailService: emailService,
		logger:       logger,
	}
}

// userResponse is the JSON shape for a user. The password hash never
// appears here by construction.
type userResponse struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Tier               string `json:"tier"`
	SubscriptionStatus string `json:"subscription_status"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:                 u.ID.String(),
		Email:              u.Email,
		Name:               u.Name,
		Tier:               string(u.Tier),
		SubscriptionStatus: string(u.SubscriptionStatus),
	}
}

// HandleSignup registers a new account and logs it in.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Log the new account straight in so the client gets a token without
	// a second round trip.
	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  toUserResponse(user),
		"token": result.Token,
	})
}

// HandleLogin authenticates and returns a fresh session token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":  toUserResponse(result.User),
		"token": result.Token,
	})
}

// HandleLogout invalidates the presented session. Idempotent.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.BearerToken(r); token != "" {
		_ = h.userService.Logout(r.Context(), token)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe returns the authenticated user's profile.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// HandleChangePassword changes the password and invalidates all sessions,
// including the one making this request.
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.userService.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandlePasswordResetRequest creates a reset token for the given email.
// The response is identical whether or not the account exists, so this
// endpoint cannot be used to enumerate emails.
func (h *AuthHandler) HandlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.CreatePasswordResetToken(r.Context(), req.Email)
	if err != nil {
		if domain.ErrorCode(err) != domain.ENOTFOUND {
			h.logger.Error("failed to create password reset token", "error", err)
		}
	} else {
		h.logger.Info("password reset requested", "user_id", result.UserID)

		// Send asynchronously so delivery latency never shows in the
		// response timing. The 202 below goes out either way.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := h.emailService.SendPasswordResetEmail(ctx, result.Email, result.Name, result.Token); err != nil {
				h.logger.Error("failed to send password reset email", "error", err, "user_id", result.UserID)
			} else {
				h.logger.Info("password reset email sent", "user_id", result.UserID)
			}
		}()
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists for that email, a reset link has been sent.",
	})
}

// HandlePasswordResetConfirm consumes a reset token and sets a new password.
func (h *AuthHandler) HandlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		// Collapse not-found to invalid so the response doesn't distinguish
		// expired, used, and never-issued tokens.
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			err = domain.Invalid("AuthHandler.HandlePasswordResetConfirm", "Invalid or expired reset token")
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
