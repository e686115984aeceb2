// Package domain contains core business types and interfaces.
//
// This file defines the monthly usage account that meters LLM generations
// for the free tier.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// FreeMonthlyPromptLimit is the number of LLM generations a free-tier user
// may perform per calendar month. Shared with the anonymous client-side
// counter; the two counters are never reconciled.
const FreeMonthlyPromptLimit = 15

// UsageAccount is the persisted per-user monthly generation counter.
//
// One row per user, created lazily on first authenticated usage query.
// If PromptsResetAt is in the past the account is stale and must be
// reconciled (counter zeroed, reset advanced) before any quota decision.
type UsageAccount struct {
	UserID         uuid.UUID
	Tier           Tier
	PromptsUsed    int       // Generations consumed this month
	PromptsResetAt time.Time // First instant of the next billing month (UTC)
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ResetDue reports whether the account's counter has crossed its month
// boundary and must be reset before being read or written.
func (a *UsageAccount) ResetDue(now time.Time) bool {
	return !now.Before(a.PromptsResetAt)
}

// Remaining returns the number of generations left this month for the
// free tier. Premium accounts have no meaningful remaining count.
func (a *UsageAccount) Remaining() int {
	if a.Tier == TierPremium {
		return 0
	}
	if a.PromptsUsed >= FreeMonthlyPromptLimit {
		return 0
	}
	return FreeMonthlyPromptLimit - a.PromptsUsed
}

// NextMonthStart returns the first instant of the calendar month after now,
// in UTC. Used for both lazy account creation and month-boundary resets.
func NextMonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// UsageResult is the outcome of a quota check-and-increment.
//
// Unlimited is a distinct flag rather than a sentinel limit value so the
// free-tier comparison branch never sees premium accounts.
type UsageResult struct {
	OK        bool
	Used      int
	Limit     int // Meaningless when Unlimited is true
	Unlimited bool
	ResetAt   time.Time
}
