// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for
// authentication. Domain types are deliberately separate from repository
// row types so the business layer stays decoupled from the database schema.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tier represents a user's subscription tier.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether the tier is a known value.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// SubscriptionStatus represents the state of a Stripe subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// User represents a registered Amplify user.
type User struct {
	ID                 uuid.UUID
	Email              string
	PasswordHash       string // Never expose this in API responses
	Name               string
	Tier               Tier
	StripeCustomerID   string
	SubscriptionID     string
	SubscriptionStatus SubscriptionStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsPremium returns true if the user is on the premium tier with an
// active subscription. A premium tier with a lapsed subscription is
// treated as free for metering purposes.
func (u *User) IsPremium() bool {
	return u.Tier == TierPremium && u.SubscriptionStatus == SubscriptionStatusActive
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored with a hashed token. The raw token is only given to
// the client once (at login) and presented back as a bearer token.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// PasswordResetTokenDuration is how long a reset token stays valid.
// Deliberately short since the token grants a password change.
const PasswordResetTokenDuration = 1 * time.Hour

// PasswordResetToken represents a stored password reset token.
// Like sessions, only the SHA-256 hash of the token is stored.
type PasswordResetToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// PasswordResetResult contains the raw token to deliver to the user,
// plus the recipient fields the mailer needs.
type PasswordResetResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    uuid.UUID
	Email     string
	Name      string
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, hashed by the service
	Name     string
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed), returned once
}
