package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/google/uuid"
)

// stubUsageService returns a fixed account for any user.
type stubUsageService struct {
	account *domain.UsageAccount
	err     error
}

func (s *stubUsageService) GetAccount(context.Context, *domain.User) (*domain.UsageAccount, error) {
	return s.account, s.err
}

func (s *stubUsageService) Check(context.Context, *domain.User) (*domain.UsageResult, error) {
	panic("not implemented")
}

func (s *stubUsageService) CheckAndIncrement(context.Context, *domain.User) (*domain.UsageResult, error) {
	panic("not implemented")
}

func usageRequest(user *domain.User) *http.Request {
	req := httptest.NewRequest("GET", "/api/usage", nil)
	if user != nil {
		req = req.WithContext(auth.SetUser(req.Context(), user))
	}
	return req
}

func TestHandleGetUsage_FreeUser(t *testing.T) {
	resetAt := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	svc := &stubUsageService{account: &domain.UsageAccount{
		UserID:         uuid.New(),
		Tier:           domain.TierFree,
		PromptsUsed:    7,
		PromptsResetAt: resetAt,
	}}
	h := NewUsageHandler(svc, testLogger())

	user := &domain.User{ID: uuid.New(), Tier: domain.TierFree}
	rec := httptest.NewRecorder()
	h.HandleGetUsage(rec, usageRequest(user))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		PromptsUsed  int    `json:"prompts_used"`
		PromptsLimit int    `json:"prompts_limit"`
		ResetsAt     string `json:"resets_at"`
		Unlimited    bool   `json:"unlimited"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.PromptsUsed != 7 {
		t.Errorf("prompts_used = %d, want 7", body.PromptsUsed)
	}
	if body.PromptsLimit != domain.FreeMonthlyPromptLimit {
		t.Errorf("prompts_limit = %d, want %d", body.PromptsLimit, domain.FreeMonthlyPromptLimit)
	}
	if body.Unlimited {
		t.Error("free user should not be unlimited")
	}
	if body.ResetsAt != "2026-10-01T00:00:00Z" {
		t.Errorf("resets_at = %q", body.ResetsAt)
	}
}

func TestHandleGetUsage_PremiumOmitsLimit(t *testing.T) {
	svc := &stubUsageService{account: &domain.UsageAccount{
		Tier:           domain.TierPremium,
		PromptsUsed:    240,
		PromptsResetAt: time.Now().UTC(),
	}}
	h := NewUsageHandler(svc, testLogger())

	user := &domain.User{
		ID:                 uuid.New(),
		Tier:               domain.TierPremium,
		SubscriptionStatus: domain.SubscriptionStatusActive,
	}
	rec := httptest.NewRecorder()
	h.HandleGetUsage(rec, usageRequest(user))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["unlimited"] != true {
		t.Error("premium user should be unlimited")
	}
	if _, ok := body["prompts_limit"]; ok {
		t.Error("premium response should omit prompts_limit")
	}
}

func TestHandleGetUsage_RequiresUser(t *testing.T) {
	h := NewUsageHandler(&stubUsageService{}, testLogger())

	rec := httptest.NewRecorder()
	h.HandleGetUsage(rec, usageRequest(nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
