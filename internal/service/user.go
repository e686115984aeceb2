// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 provides good security (~250ms on modern hardware) while being
	// fast enough for login flows.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes for session tokens.
	// 32 bytes = 256 bits of entropy. The token is hex-encoded to 64
	// characters for transmission.
	SessionTokenBytes = 32

	// SessionDuration is how long a session remains valid.
	SessionDuration = 30 * 24 * time.Hour

	// MinPasswordLength follows NIST SP 800-63B.
	MinPasswordLength = 8

	// MaxPasswordLength stops DoS via bcrypt on very long inputs.
	// bcrypt truncates at 72 bytes anyway.
	MaxPasswordLength = 72
)

// UserService defines the interface for user-related operations.
type UserService interface {
	// Register creates a new user account and its usage account.
	// Returns domain.ECONFLICT if email already exists.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and creates a new session.
	// Returns the user and raw session token on success.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token. Idempotent.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user by their ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetBySessionToken resolves a raw bearer token to its user.
	// Returns domain.EUNAUTHORIZED if the token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// ChangePassword verifies the current password, replaces it, and
	// invalidates every existing session for the user.
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error

	// CreatePasswordResetToken creates a reset token for the given email.
	// Returns domain.ENOTFOUND if no account exists; callers must not
	// expose that to the client (always answer "if an account exists...").
	CreatePasswordResetToken(ctx context.Context, email string) (*domain.PasswordResetResult, error)

	// ResetPassword consumes a reset token and replaces the password.
	// All of the user's sessions are invalidated.
	ResetPassword(ctx context.Context, token, newPassword string) error

	// DeleteExpiredSessions removes expired sessions. Run periodically.
	DeleteExpiredSessions(ctx context.Context) error

	// DeleteExpiredPasswordResetTokens removes expired reset tokens.
	DeleteExpiredPasswordResetTokens(ctx context.Context) error

	// UpdateStripeCustomer saves the Stripe customer ID for a user.
	UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error

	// UpdateSubscription updates subscription state and keeps the user's
	// usage account tier in sync.
	UpdateSubscription(ctx context.Context, userID uuid.UUID, tier domain.Tier, status domain.SubscriptionStatus, subscriptionID string) error

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)
}

// userService is the concrete implementation of UserService.
type userService struct {
	repo   *repository.Repository
	logger *slog.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(repo *repository.Repository, logger *slog.Logger) UserService {
	return &userService{
		repo:   repo,
		logger: logger,
	}
}

// Register creates a new user account.
//
// Security considerations:
// - Password is hashed with bcrypt cost 12
// - A bcrypt comparison runs even on duplicate email to keep timing flat
// - The raw password is never logged or stored
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid email address")
	}
	if params.Name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid password")
	}

	_, err := s.repo.GetUserByEmail(ctx, params.Email)
	if err == nil {
		// Hash anyway so duplicate-email responses take the same time
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	user, err := s.repo.CreateUser(ctx, params.Email, string(passwordHash), params.Name)
	if err != nil {
		// Unique constraint race with a concurrent registration
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	// Provision the usage account eagerly. A failure here is not fatal;
	// the usage service creates the row lazily on first check.
	if err := s.repo.CreateUsageAccount(ctx, user.ID, user.Tier, domain.NextMonthStart(time.Now())); err != nil {
		s.logger.Warn("failed to provision usage account", "user_id", user.ID, "error", err)
	}

	user.PasswordHash = ""
	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates a user and creates a new session.
//
// Security considerations:
// - Constant-time password comparison via bcrypt
// - Generic error message prevents email enumeration
// - Token is hashed before storage; plaintext is returned exactly once
func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Dummy comparison keeps unknown-email timing close to the
			// wrong-password path.
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate session token")
	}

	_, err = s.repo.CreateSession(ctx, user.ID, hashSessionToken(token), time.Now().Add(SessionDuration))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	user.PasswordHash = ""
	s.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)

	return &domain.LoginResult{User: user, Token: token}, nil
}

// Logout invalidates a session. Idempotent: invalid tokens are ignored.
func (s *userService) Logout(ctx context.Context, token string) error {
	if len(token) != SessionTokenBytes*2 {
		return nil
	}
	if err := s.repo.DeleteSessionByTokenHash(ctx, hashSessionToken(token)); err != nil {
		s.logger.Warn("failed to delete session", "error", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}
	user.PasswordHash = ""
	return user, nil
}

// GetBySessionToken resolves a raw session token to its user.
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.GetBySessionToken"

	if len(token) != SessionTokenBytes*2 {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	session, err := s.repo.GetSessionByTokenHash(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}
	if session.IsExpired() {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user.PasswordHash = ""
	return user, nil
}

// ChangePassword verifies the current password before replacing it.
// All sessions are invalidated on success.
func (s *userService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	const op = "UserService.ChangePassword"

	if err := validatePassword(next); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "Invalid password")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", userID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return domain.Unauthorized(op, "Current password is incorrect")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(next), BcryptCost)
	if err != nil {
		return domain.Internal(err, op, "Failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(newHash)); err != nil {
		return domain.Internal(err, op, "Failed to update password")
	}

	if err := s.repo.DeleteSessionsForUser(ctx, userID); err != nil {
		// Sessions still carry the old credential; log loudly but the
		// password change itself succeeded.
		s.logger.Error("failed to invalidate sessions after password change", "user_id", userID, "error", err)
	}

	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// CreatePasswordResetToken creates a reset token for a user.
//
// Old tokens are deleted first so only one token is live per user. The
// expiration is short (1 hour) since the token grants a password change.
func (s *userService) CreatePasswordResetToken(ctx context.Context, email string) (*domain.PasswordResetResult, error) {
	const op = "UserService.CreatePasswordResetToken"

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", email)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := s.repo.DeletePasswordResetTokensForUser(ctx, user.ID); err != nil {
		return nil, domain.Internal(err, op, "Failed to delete existing tokens")
	}

	rawToken, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate token")
	}

	expiresAt := time.Now().Add(domain.PasswordResetTokenDuration)
	if _, err := s.repo.CreatePasswordResetToken(ctx, user.ID, hashSessionToken(rawToken), expiresAt); err != nil {
		return nil, domain.Internal(err, op, "Failed to create password reset token")
	}

	s.logger.Info("password reset token created", "user_id", user.ID, "email", user.Email)

	return &domain.PasswordResetResult{
		Token:     rawToken,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
	}, nil
}

// ResetPassword consumes a reset token and replaces the password.
//
// The token is marked used rather than deleted so resets leave an audit
// trail. All sessions are invalidated to force re-authentication.
func (s *userService) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "UserService.ResetPassword"

	if len(token) != SessionTokenBytes*2 {
		return domain.Invalid(op, "Invalid reset token")
	}
	if err := validatePassword(newPassword); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "Invalid new password")
	}

	tokenHash := hashSessionToken(token)
	resetToken, err := s.repo.GetPasswordResetTokenByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "reset token", "")
		}
		return domain.Internal(err, op, "Failed to retrieve reset token")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return domain.Internal(err, op, "Failed to hash new password")
	}

	if err := s.repo.UpdatePassword(ctx, resetToken.UserID, string(newHash)); err != nil {
		return domain.Internal(err, op, "Failed to update password")
	}

	if err := s.repo.MarkPasswordResetTokenUsed(ctx, tokenHash); err != nil {
		// Password already changed; log but don't fail.
		s.logger.Warn("failed to mark reset token as used", "error", err, "user_id", resetToken.UserID)
	}

	if err := s.repo.DeleteSessionsForUser(ctx, resetToken.UserID); err != nil {
		s.logger.Warn("failed to delete user sessions after password reset", "error", err, "user_id", resetToken.UserID)
	}

	s.logger.Info("password reset completed", "user_id", resetToken.UserID)
	return nil
}

// DeleteExpiredSessions removes expired session rows.
func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "UserService.DeleteExpiredSessions"

	n, err := s.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		return domain.Internal(err, op, "Failed to delete expired sessions")
	}
	if n > 0 {
		s.logger.Info("expired sessions deleted", "count", n)
	}
	return nil
}

// DeleteExpiredPasswordResetTokens removes expired reset token rows.
func (s *userService) DeleteExpiredPasswordResetTokens(ctx context.Context) error {
	const op = "UserService.DeleteExpiredPasswordResetTokens"

	n, err := s.repo.DeleteExpiredPasswordResetTokens(ctx)
	if err != nil {
		return domain.Internal(err, op, "Failed to delete expired reset tokens")
	}
	if n > 0 {
		s.logger.Info("expired password reset tokens deleted", "count", n)
	}
	return nil
}

// UpdateStripeCustomer saves the Stripe customer ID for a user.
func (s *userService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "UserService.UpdateStripeCustomer"

	if err := s.repo.UpdateStripeCustomer(ctx, userID, stripeCustomerID); err != nil {
		return domain.Internal(err, op, "Failed to update Stripe customer")
	}
	return nil
}

// UpdateSubscription updates subscription state on the user row and mirrors
// the tier onto the usage account so metering sees the change immediately.
func (s *userService) UpdateSubscription(ctx context.Context, userID uuid.UUID, tier domain.Tier, status domain.SubscriptionStatus, subscriptionID string) error {
	const op = "UserService.UpdateSubscription"

	if !tier.Valid() {
		return domain.Invalid(op, "Unknown subscription tier")
	}

	if err := s.repo.UpdateSubscription(ctx, userID, tier, status, subscriptionID); err != nil {
		return domain.Internal(err, op, "Failed to update subscription")
	}

	// Metering treats a lapsed premium subscription as free.
	effective := tier
	if tier == domain.TierPremium && status != domain.SubscriptionStatusActive {
		effective = domain.TierFree
	}
	if err := s.repo.SetUsageTier(ctx, userID, effective); err != nil {
		return domain.Internal(err, op, "Failed to sync usage account tier")
	}

	s.logger.Info("subscription updated", "user_id", userID, "tier", tier, "status", status)
	return nil
}

// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
func (s *userService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	const op = "UserService.GetByStripeCustomerID"

	user, err := s.repo.GetUserByStripeCustomerID(ctx, stripeCustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", stripeCustomerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}
	user.PasswordHash = ""
	return user, nil
}

// generateSessionToken creates a cryptographically secure session token,
// returned as a 64-character hex string.
func generateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashSessionToken creates a SHA-256 hash of a session token. Tokens are
// high-entropy random values, so a fast hash is sufficient; bcrypt would be
// needless per-request cost.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// validateEmail checks basic email shape: single @, dotted domain,
// RFC 5321 length limit.
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") || at == len(email)-1 {
		return domain.Invalid("", "Email address is malformed")
	}
	if !strings.Contains(email[at+1:], ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}
	return nil
}

// validatePassword enforces length bounds only. Composition rules are
// deliberately not imposed.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}
	return nil
}
