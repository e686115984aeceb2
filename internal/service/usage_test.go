package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/google/uuid"
)

// fakeUsageRepo is an in-memory usageRepo that mirrors the conditional
// SQL semantics of the real repository.
type fakeUsageRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*domain.UsageAccount

	// Error injection
	getErr       error
	incrementErr error
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{accounts: make(map[uuid.UUID]*domain.UsageAccount)}
}

func (f *fakeUsageRepo) GetUsageAccount(_ context.Context, userID uuid.UUID) (*domain.UsageAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.accounts[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (f *fakeUsageRepo) CreateUsageAccount(_ context.Context, userID uuid.UUID, tier domain.Tier, resetAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[userID]; ok {
		return nil // ON CONFLICT DO NOTHING
	}
	f.accounts[userID] = &domain.UsageAccount{
		UserID:         userID,
		Tier:           tier,
		PromptsResetAt: resetAt,
	}
	return nil
}

func (f *fakeUsageRepo) ResetUsageIfDue(_ context.Context, userID uuid.UUID, now, nextResetAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[userID]
	if !ok || a.PromptsResetAt.After(now) {
		return false, nil
	}
	a.PromptsUsed = 0
	a.PromptsResetAt = nextResetAt
	return true, nil
}

func (f *fakeUsageRepo) IncrementUsageIfBelow(_ context.Context, userID uuid.UUID, limit int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return 0, false, f.incrementErr
	}
	a, ok := f.accounts[userID]
	if !ok || a.PromptsUsed >= limit {
		return 0, false, nil
	}
	a.PromptsUsed++
	return a.PromptsUsed, true, nil
}

func (f *fakeUsageRepo) IncrementUsage(_ context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	a, ok := f.accounts[userID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	a.PromptsUsed++
	return a.PromptsUsed, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freeUser() *domain.User {
	return &domain.User{ID: uuid.New(), Tier: domain.TierFree}
}

func premiumUser() *domain.User {
	return &domain.User{
		ID:                 uuid.New(),
		Tier:               domain.TierPremium,
		SubscriptionStatus: domain.SubscriptionStatusActive,
	}
}

func newTestUsageService(repo usageRepo, at time.Time) *usageService {
	return &usageService{
		repo:   repo,
		logger: testLogger(),
		now:    func() time.Time { return at },
	}
}

func TestCheckAndIncrement_FreeLimitExact(t *testing.T) {
	repo := newFakeUsageRepo()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestUsageService(repo, now)
	user := freeUser()

	for i := 1; i <= domain.FreeMonthlyPromptLimit; i++ {
		result, err := svc.CheckAndIncrement(context.Background(), user)
		if err != nil {
			t.Fatalf("increment %d: unexpected error: %v", i, err)
		}
		if result.Used != i {
			t.Errorf("increment %d: used = %d, want %d", i, result.Used, i)
		}
		if result.Limit != domain.FreeMonthlyPromptLimit {
			t.Errorf("increment %d: limit = %d, want %d", i, result.Limit, domain.FreeMonthlyPromptLimit)
		}
	}

	// One past the limit must fail with a quota error
	_, err := svc.CheckAndIncrement(context.Background(), user)
	if err == nil {
		t.Fatal("expected quota error past the limit")
	}
	qe, ok := domain.AsQuotaError(err)
	if !ok {
		t.Fatalf("expected *domain.QuotaError, got %T: %v", err, err)
	}
	if qe.Used != domain.FreeMonthlyPromptLimit || qe.Limit != domain.FreeMonthlyPromptLimit {
		t.Errorf("quota error counters = %d/%d, want %d/%d",
			qe.Used, qe.Limit, domain.FreeMonthlyPromptLimit, domain.FreeMonthlyPromptLimit)
	}
}

func TestCheckAndIncrement_DeniedDoesNotConsume(t *testing.T) {
	repo := newFakeUsageRepo()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestUsageService(repo, now)
	user := freeUser()

	for i := 0; i < domain.FreeMonthlyPromptLimit; i++ {
		if _, err := svc.CheckAndIncrement(context.Background(), user); err != nil {
			t.Fatalf("setup increment %d failed: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.CheckAndIncrement(context.Background(), user); err == nil {
			t.Fatal("expected denial past limit")
		}
	}

	account, err := svc.GetAccount(context.Background(), user)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.PromptsUsed != domain.FreeMonthlyPromptLimit {
		t.Errorf("denied requests changed the counter: %d", account.PromptsUsed)
	}
}

func TestCheckAndIncrement_MonthlyReset(t *testing.T) {
	repo := newFakeUsageRepo()
	before := time.Date(2026, time.March, 25, 9, 0, 0, 0, time.UTC)
	svc := newTestUsageService(repo, before)
	user := freeUser()

	// Exhaust March
	for i := 0; i < domain.FreeMonthlyPromptLimit; i++ {
		if _, err := svc.CheckAndIncrement(context.Background(), user); err != nil {
			t.Fatalf("setup increment %d failed: %v", i, err)
		}
	}
	if _, err := svc.CheckAndIncrement(context.Background(), user); err == nil {
		t.Fatal("expected denial at the March limit")
	}

	// Cross into April
	svc.now = func() time.Time {
		return time.Date(2026, time.April, 1, 0, 0, 1, 0, time.UTC)
	}

	result, err := svc.CheckAndIncrement(context.Background(), user)
	if err != nil {
		t.Fatalf("first April request should pass: %v", err)
	}
	if result.Used != 1 {
		t.Errorf("used after reset = %d, want 1", result.Used)
	}

	account, err := svc.GetAccount(context.Background(), user)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	wantReset := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	if !account.PromptsResetAt.Equal(wantReset) {
		t.Errorf("reset_at = %v, want %v", account.PromptsResetAt, wantReset)
	}
}

func TestCheckAndIncrement_PremiumUnlimited(t *testing.T) {
	repo := newFakeUsageRepo()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestUsageService(repo, now)
	user := premiumUser()

	// Far past the free limit, every request must succeed
	for i := 1; i <= domain.FreeMonthlyPromptLimit*3; i++ {
		result, err := svc.CheckAndIncrement(context.Background(), user)
		if err != nil {
			t.Fatalf("premium increment %d failed: %v", i, err)
		}
		if !result.Unlimited {
			t.Fatal("premium result should report unlimited")
		}
	}
}

func TestCheckAndIncrement_LapsedPremiumIsMetered(t *testing.T) {
	repo := newFakeUsageRepo()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestUsageService(repo, now)

	user := &domain.User{
		ID:                 uuid.New(),
		Tier:               domain.TierPremium,
		SubscriptionStatus: domain.SubscriptionStatusPastDue,
	}

	for i := 0; i < domain.FreeMonthlyPromptLimit; i++ {
		if _, err := svc.CheckAndIncrement(context.Background(), user); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}
	if _, err := svc.CheckAndIncrement(context.Background(), user); err == nil {
		t.Fatal("lapsed premium should hit the free limit")
	}
}

func TestCheckAndIncrement_FailsClosedOnRepoError(t *testing.T) {
	repo := newFakeUsageRepo()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestUsageService(repo, now)
	user := freeUser()

	// Seed the account, then break increments
	if _, err := svc.CheckAndIncrement(context.Background(), user); err != nil {
		t.Fatalf("seed increment failed: %v", err)
	}
	repo.incrementErr = errors.New("connection reset")

	_, err := svc.CheckAndIncrement(context.Background(), user)
	if err == nil {
		t.Fatal("persistence failure must deny the request")
	}
	if domain.ErrorCode(err) != domain.EINTERNAL {
		t.Errorf("error code = %q, want %q", domain.ErrorCode(err), domain.EINTERNAL)
	}
}

func TestCheckAndIncrement_ConcurrentAtBoundary(t *testing.T) {
	repo := newFakeUsageRepo()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestUsageService(repo, now)
	user := freeUser()

	// Leave exactly one prompt of quota
	for i := 0; i < domain.FreeMonthlyPromptLimit-1; i++ {
		if _, err := svc.CheckAndIncrement(context.Background(), user); err != nil {
			t.Fatalf("setup increment %d failed: %v", i, err)
		}
	}

	const racers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CheckAndIncrement(context.Background(), user); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("exactly one racer should win the last slot, got %d", succeeded)
	}
}

func TestGetAccount_CreatesLazily(t *testing.T) {
	repo := newFakeUsageRepo()
	now := time.Date(2026, time.June, 15, 8, 0, 0, 0, time.UTC)
	svc := newTestUsageService(repo, now)
	user := freeUser()

	account, err := svc.GetAccount(context.Background(), user)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.PromptsUsed != 0 {
		t.Errorf("new account used = %d, want 0", account.PromptsUsed)
	}
	wantReset := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	if !account.PromptsResetAt.Equal(wantReset) {
		t.Errorf("new account reset_at = %v, want %v", account.PromptsResetAt, wantReset)
	}
}
