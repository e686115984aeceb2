// This file implements the usage endpoint.
//
// Route:
//   - GET /api/usage -> HandleGetUsage (requires auth)
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/service"
)

// UsageHandler serves the authenticated user's monthly usage counters.
type UsageHandler struct {
	usage  service.UsageService
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usage service.UsageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// HandleGetUsage returns current usage. Premium accounts report
// "unlimited": true and omit the limit.
func (h *UsageHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	account, err := h.usage.GetAccount(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	body := map[string]any{
		"prompts_used": account.PromptsUsed,
		"resets_at":    account.PromptsResetAt.UTC().Format(time.RFC3339),
		"unlimited":    user.IsPremium(),
	}
	if !user.IsPremium() {
		body["prompts_limit"] = domain.FreeMonthlyPromptLimit
	}

	writeJSON(w, http.StatusOK, body)
}
