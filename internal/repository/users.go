package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/google/uuid"
)

const userColumns = `id, email, password_hash, name, tier, stripe_customer_id,
	subscription_id, subscription_status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Tier,
		&u.StripeCustomerID,
		&u.SubscriptionID,
		&u.SubscriptionStatus,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user and returns the stored row.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash, name string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		email, passwordHash, name,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email. Returns sql.ErrNoRows if absent.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUserByID retrieves a user by ID. Returns sql.ErrNoRows if absent.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByStripeCustomerID retrieves a user by their Stripe customer ID.
func (r *Repository) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID)
	return scanUser(row)
}

// UpdateStripeCustomer records the user's Stripe customer ID.
func (r *Repository) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, customerID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET stripe_customer_id = $2, updated_at = now()
		WHERE id = $1`,
		userID, customerID)
	if err != nil {
		return fmt.Errorf("update stripe customer: %w", err)
	}
	return nil
}

// UpdateSubscription updates the user's tier and subscription state.
func (r *Repository) UpdateSubscription(ctx context.Context, userID uuid.UUID, tier domain.Tier, status domain.SubscriptionStatus, subscriptionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET tier = $2, subscription_status = $3, subscription_id = $4, updated_at = now()
		WHERE id = $1`,
		userID, tier, status, subscriptionID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// UpdatePassword replaces the user's password hash.
func (r *Repository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now()
		WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateSession inserts a session row for a user.
func (r *Repository) CreateSession(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, token_hash, expires_at, created_at`,
		userID, tokenHash, expiresAt,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &s, nil
}

// GetSessionByTokenHash retrieves a session by its hashed token.
func (r *Repository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSessionByTokenHash removes one session. Idempotent.
func (r *Repository) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteSessionsForUser removes every session a user holds, e.g. after a
// password change.
func (r *Repository) DeleteSessionsForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete sessions for user: %w", err)
	}
	return nil
}

// CreatePasswordResetToken inserts a reset token row for a user.
func (r *Repository) CreatePasswordResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (*domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO password_reset_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, token_hash, expires_at, used_at, created_at`,
		userID, tokenHash, expiresAt,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create password reset token: %w", err)
	}
	return &t, nil
}

// GetPasswordResetTokenByHash retrieves a live reset token by its hash.
// Expired and already-used tokens are filtered out by the query.
func (r *Repository) GetPasswordResetTokenByHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	var t domain.PasswordResetToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1 AND expires_at > now() AND used_at IS NULL`,
		tokenHash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkPasswordResetTokenUsed stamps a token as consumed. The row is kept
// rather than deleted so resets leave an audit trail.
func (r *Repository) MarkPasswordResetTokenUsed(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE password_reset_tokens SET used_at = now()
		WHERE token_hash = $1`,
		tokenHash)
	if err != nil {
		return fmt.Errorf("mark password reset token used: %w", err)
	}
	return nil
}

// DeletePasswordResetTokensForUser removes all reset tokens a user holds.
func (r *Repository) DeletePasswordResetTokensForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete password reset tokens for user: %w", err)
	}
	return nil
}

// DeleteExpiredPasswordResetTokens removes reset tokens past their expiry.
func (r *Repository) DeleteExpiredPasswordResetTokens(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired password reset tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
