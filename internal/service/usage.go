package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/google/uuid"
)

// usageRepo is the slice of the repository the usage service needs.
// Narrowed to an interface so tests can substitute a fake.
type usageRepo interface {
	GetUsageAccount(ctx context.Context, userID uuid.UUID) (*domain.UsageAccount, error)
	CreateUsageAccount(ctx context.Context, userID uuid.UUID, tier domain.Tier, resetAt time.Time) error
	ResetUsageIfDue(ctx context.Context, userID uuid.UUID, now, nextResetAt time.Time) (bool, error)
	IncrementUsageIfBelow(ctx context.Context, userID uuid.UUID, limit int) (int, bool, error)
	IncrementUsage(ctx context.Context, userID uuid.UUID) (int, error)
}

// UsageService meters monthly prompt consumption.
//
// The free tier gets domain.FreeMonthlyPromptLimit prompts per calendar
// month; premium users are unlimited. Counters reset at the first instant
// of the next calendar month (UTC). Admission is decided by a conditional
// database increment so concurrent requests can never over-admit.
type UsageService interface {
	// GetAccount returns the user's usage account, creating it if absent
	// and rolling the counter over if the reset time has passed.
	GetAccount(ctx context.Context, user *domain.User) (*domain.UsageAccount, error)

	// Check reports whether the user currently has quota, without
	// consuming any. Used to gate generation before the provider call;
	// the consuming increment happens after the call succeeds.
	//
	// On exhausted quota the returned error is a *domain.QuotaError.
	Check(ctx context.Context, user *domain.User) (*domain.UsageResult, error)

	// CheckAndIncrement admits one prompt if the user has quota and
	// consumes it atomically. For premium users the counter is advanced
	// for reporting but never gates.
	//
	// On exhausted quota the returned error is a *domain.QuotaError.
	// Any persistence failure denies the request (fail closed).
	CheckAndIncrement(ctx context.Context, user *domain.User) (*domain.UsageResult, error)
}

type usageService struct {
	repo   usageRepo
	logger *slog.Logger
	now    func() time.Time
}

// NewUsageService creates a new UsageService instance.
func NewUsageService(repo usageRepo, logger *slog.Logger) UsageService {
	return &usageService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// GetAccount loads the account, lazily creating and reconciling it.
func (s *usageService) GetAccount(ctx context.Context, user *domain.User) (*domain.UsageAccount, error) {
	const op = "UsageService.GetAccount"

	account, err := s.loadAccount(ctx, user)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load usage account")
	}
	return account, nil
}

// Check gates without consuming.
func (s *usageService) Check(ctx context.Context, user *domain.User) (*domain.UsageResult, error) {
	const op = "UsageService.Check"

	account, err := s.loadAccount(ctx, user)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load usage account")
	}

	if user.IsPremium() {
		return &domain.UsageResult{
			OK:        true,
			Used:      account.PromptsUsed,
			Unlimited: true,
			ResetAt:   account.PromptsResetAt,
		}, nil
	}

	if account.PromptsUsed >= domain.FreeMonthlyPromptLimit {
		return nil, domain.QuotaExceeded(op, account.PromptsUsed, domain.FreeMonthlyPromptLimit)
	}

	return &domain.UsageResult{
		OK:      true,
		Used:    account.PromptsUsed,
		Limit:   domain.FreeMonthlyPromptLimit,
		ResetAt: account.PromptsResetAt,
	}, nil
}

// CheckAndIncrement is the single admission point for prompt consumption.
func (s *usageService) CheckAndIncrement(ctx context.Context, user *domain.User) (*domain.UsageResult, error) {
	const op = "UsageService.CheckAndIncrement"

	account, err := s.loadAccount(ctx, user)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load usage account")
	}

	// Premium is a flag, not a bigger number. The counter still advances
	// so the dashboard can show lifetime-style usage, but it never gates.
	if user.IsPremium() {
		used, err := s.repo.IncrementUsage(ctx, user.ID)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to record usage")
		}
		return &domain.UsageResult{
			OK:        true,
			Used:      used,
			Unlimited: true,
			ResetAt:   account.PromptsResetAt,
		}, nil
	}

	used, ok, err := s.repo.IncrementUsageIfBelow(ctx, user.ID, domain.FreeMonthlyPromptLimit)
	if err != nil {
		// Fail closed: an unknown counter state must not admit.
		return nil, domain.Internal(err, op, "Failed to record usage")
	}
	if !ok {
		s.logger.Info("monthly quota exhausted", "user_id", user.ID, "limit", domain.FreeMonthlyPromptLimit)
		return nil, domain.QuotaExceeded(op, account.PromptsUsed, domain.FreeMonthlyPromptLimit)
	}

	return &domain.UsageResult{
		OK:      true,
		Used:    used,
		Limit:   domain.FreeMonthlyPromptLimit,
		ResetAt: account.PromptsResetAt,
	}, nil
}

// loadAccount fetches the account, creating the row on first touch and
// applying the monthly reset when it is due. The reset is a conditional
// UPDATE keyed on the stored reset time, so concurrent callers race
// harmlessly: exactly one wins and the rest observe the reset row.
func (s *usageService) loadAccount(ctx context.Context, user *domain.User) (*domain.UsageAccount, error) {
	now := s.now()

	account, err := s.repo.GetUsageAccount(ctx, user.ID)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.repo.CreateUsageAccount(ctx, user.ID, user.Tier, domain.NextMonthStart(now)); err != nil {
			return nil, err
		}
		account, err = s.repo.GetUsageAccount(ctx, user.ID)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if account.ResetDue(now) {
		reset, err := s.repo.ResetUsageIfDue(ctx, user.ID, now, domain.NextMonthStart(now))
		if err != nil {
			return nil, err
		}
		if reset {
			s.logger.Info("monthly usage reset", "user_id", user.ID, "reset_at", domain.NextMonthStart(now))
		}
		account, err = s.repo.GetUsageAccount(ctx, user.ID)
		if err != nil {
			return nil, err
		}
	}

	return account, nil
}
