package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/google/uuid"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

const usageColumns = `user_id, tier, prompts_used_this_month, prompts_reset_at, created_at, updated_at`

func scanUsageAccount(row interface{ Scan(...any) error }) (*domain.UsageAccount, error) {
	var a domain.UsageAccount
	err := row.Scan(
		&a.UserID,
		&a.Tier,
		&a.PromptsUsed,
		&a.PromptsResetAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetUsageAccount retrieves the usage row for a user.
// Returns sql.ErrNoRows if absent.
func (r *Repository) GetUsageAccount(ctx context.Context, userID uuid.UUID) (*domain.UsageAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+usageColumns+` FROM usage_accounts WHERE user_id = $1`, userID)
	return scanUsageAccount(row)
}

// CreateUsageAccount lazily creates the usage row for a user. Insert-if-
// absent: a concurrent creation by another request is not an error, the
// caller re-reads on conflict.
func (r *Repository) CreateUsageAccount(ctx context.Context, userID uuid.UUID, tier domain.Tier, resetAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_accounts (user_id, tier, prompts_used_this_month, prompts_reset_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, tier, resetAt)
	if err != nil {
		return fmt.Errorf("create usage account: %w", err)
	}
	return nil
}

// ResetUsageIfDue zeroes the counter and advances the reset boundary, but
// only if the stored boundary has actually passed. The WHERE clause makes
// the month rollover a single atomic conditional update, so two concurrent
// reconciliations cannot both apply.
func (r *Repository) ResetUsageIfDue(ctx context.Context, userID uuid.UUID, now, nextResetAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE usage_accounts
		SET prompts_used_this_month = 0, prompts_reset_at = $3, updated_at = now()
		WHERE user_id = $1 AND prompts_reset_at <= $2`,
		userID, now, nextResetAt)
	if err != nil {
		return false, fmt.Errorf("reset usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset usage: %w", err)
	}
	return n > 0, nil
}

// IncrementUsageIfBelow increments the counter only while it is below the
// given ceiling, returning the updated count. Admission is decided by
// rows-affected: zero rows means the account was already at the limit.
// This is the atomic compare-and-increment the free tier depends on — a
// read-then-write sequence here would over-admit under concurrency.
func (r *Repository) IncrementUsageIfBelow(ctx context.Context, userID uuid.UUID, limit int) (int, bool, error) {
	var used int
	err := r.db.QueryRowContext(ctx, `
		UPDATE usage_accounts
		SET prompts_used_this_month = prompts_used_this_month + 1, updated_at = now()
		WHERE user_id = $1 AND prompts_used_this_month < $2
		RETURNING prompts_used_this_month`,
		userID, limit,
	).Scan(&used)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("increment usage: %w", err)
	}
	return used, true, nil
}

// IncrementUsage increments the counter unconditionally (premium tier,
// kept for observability) and returns the updated count.
func (r *Repository) IncrementUsage(ctx context.Context, userID uuid.UUID) (int, error) {
	var used int
	err := r.db.QueryRowContext(ctx, `
		UPDATE usage_accounts
		SET prompts_used_this_month = prompts_used_this_month + 1, updated_at = now()
		WHERE user_id = $1
		RETURNING prompts_used_this_month`,
		userID,
	).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return used, nil
}

// SetUsageTier mirrors a subscription change onto the usage row.
func (r *Repository) SetUsageTier(ctx context.Context, userID uuid.UUID, tier domain.Tier) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE usage_accounts SET tier = $2, updated_at = now()
		WHERE user_id = $1`,
		userID, tier)
	if err != nil {
		return fmt.Errorf("set usage tier: %w", err)
	}
	return nil
}
