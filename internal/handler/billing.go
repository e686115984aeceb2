// This file implements billing/subscription management handlers backed by Stripe.
//
// Routes handled:
//   - GET  /api/billing             -> HandleGetBilling
//   - POST /api/billing/checkout    -> HandleCreateCheckout
//   - POST /api/billing/portal      -> HandleOpenPortal
//   - POST /api/billing/cancel      -> HandleCancelSubscription
//   - POST /api/billing/reactivate  -> HandleReactivateSubscription
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/billing"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/service"
)

// BillingHandler handles billing and subscription management HTTP requests.
type BillingHandler struct {
	billing     billing.Service
	userService service.UserService
	baseURL     string
	prices      billing.PriceConfig
	logger      *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, userService service.UserService, baseURL string, prices billing.PriceConfig, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:     billingService,
		userService: userService,
		baseURL:     baseURL,
		prices:      prices,
		logger:      logger,
	}
}

// billingResponse is the JSON shape for the current subscription state.
type billingResponse struct {
	Tier        string `json:"tier"`
	Status      string `json:"status"`
	PeriodEnd   string `json:"period_end,omitempty"`
	CancelAtEnd bool   `json:"cancel_at_period_end"`
	Prices      struct {
		PremiumMonthly string `json:"premium_monthly"`
		PremiumYearly  string `json:"premium_yearly"`
	} `json:"prices"`
}

// HandleGetBilling returns the user's current subscription info.
func (h *BillingHandler) HandleGetBilling(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	resp := billingResponse{
		Tier:   string(user.Tier),
		Status: string(user.SubscriptionStatus),
	}
	resp.Prices.PremiumMonthly = h.prices.PremiumMonthlyPriceID
	resp.Prices.PremiumYearly = h.prices.PremiumYearlyPriceID

	// Fetch live subscription details from Stripe if available
	if h.billing != nil && user.SubscriptionID != "" {
		sub, err := h.billing.GetSubscription(user.SubscriptionID)
		if err != nil {
			h.logger.Warn("failed to fetch stripe subscription", "error", err, "subscription_id", user.SubscriptionID)
		} else {
			resp.PeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC().Format(time.RFC3339)
			resp.CancelAtEnd = sub.CancelAtPeriodEnd
			resp.Status = string(sub.Status)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleCreateCheckout creates a Stripe Checkout session and returns its URL.
func (h *BillingHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if h.billing == nil {
		h.logger.Warn("checkout attempted but Stripe is not configured")
		writeJSONError(w, http.StatusBadRequest, "Billing is not configured")
		return
	}

	var req struct {
		PriceID string `json:"price_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.PriceID == "" {
		writeJSONError(w, http.StatusBadRequest, "price_id is required")
		return
	}
	if h.billing.TierForPriceID(req.PriceID) != domain.TierPremium {
		writeJSONError(w, http.StatusBadRequest, "Unknown price ID")
		return
	}

	// Ensure user has a Stripe customer
	customerID := user.StripeCustomerID
	if customerID == "" {
		var err error
		customerID, err = h.billing.CreateCustomer(user.Email, user.Name)
		if err != nil {
			h.logger.Error("failed to create stripe customer", "error", err, "user_id", user.ID)
			InternalErrorResponse(w, r, h.logger, err)
			return
		}
		if err := h.userService.UpdateStripeCustomer(r.Context(), user.ID, customerID); err != nil {
			h.logger.Error("failed to save stripe customer ID", "error", err, "user_id", user.ID)
		}
	}

	successURL := fmt.Sprintf("%s/billing/success?session_id={CHECKOUT_SESSION_ID}", h.baseURL)
	cancelURL := fmt.Sprintf("%s/billing", h.baseURL)

	checkoutURL, err := h.billing.CreateCheckoutSession(customerID, req.PriceID, successURL, cancelURL)
	if err != nil {
		h.logger.Error("failed to create checkout session", "error", err, "user_id", user.ID)
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

// HandleOpenPortal creates a Stripe Customer Portal session and returns its URL.
func (h *BillingHandler) HandleOpenPortal(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if h.billing == nil {
		writeJSONError(w, http.StatusBadRequest, "Billing is not configured")
		return
	}

	if user.StripeCustomerID == "" {
		writeJSONError(w, http.StatusBadRequest, "No billing account")
		return
	}

	returnURL := fmt.Sprintf("%s/billing", h.baseURL)
	portalURL, err := h.billing.CreatePortalSession(user.StripeCustomerID, returnURL)
	if err != nil {
		h.logger.Error("failed to create portal session", "error", err, "user_id", user.ID)
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": portalURL})
}

// HandleCancelSubscription sets the subscription to cancel at period end.
func (h *BillingHandler) HandleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if h.billing == nil {
		writeJSONError(w, http.StatusBadRequest, "Billing is not configured")
		return
	}

	if user.SubscriptionID == "" {
		writeJSONError(w, http.StatusBadRequest, "No active subscription to cancel")
		return
	}

	if err := h.billing.CancelSubscription(user.SubscriptionID); err != nil {
		h.logger.Error("failed to cancel subscription", "error", err, "user_id", user.ID)
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleReactivateSubscription removes the cancel-at-period-end flag.
func (h *BillingHandler) HandleReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if h.billing == nil {
		writeJSONError(w, http.StatusBadRequest, "Billing is not configured")
		return
	}

	if user.SubscriptionID == "" {
		writeJSONError(w, http.StatusBadRequest, "No subscription to reactivate")
		return
	}

	if err := h.billing.ReactivateSubscription(user.SubscriptionID); err != nil {
		h.logger.Error("failed to reactivate subscription", "error", err, "user_id", user.ID)
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
