// Package email sends transactional email for the Amplify API.
//
// The only mail the service sends today is the password reset link. The
// Service interface exists so handlers can be tested with a capture mock
// and so an API-based sender (Postmark, SES) can replace SMTP later
// without touching the handlers.
package email

import (
	"context"
)

// Service defines the interface for sending transactional emails.
//
// All methods are context-aware for timeout and cancellation support.
type Service interface {
	// SendPasswordResetEmail sends a password reset link to a user.
	// The raw token is embedded in the link; it is never stored in
	// plaintext anywhere else.
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
}

// Message represents a single email message.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string // Plain text fallback
}

// SMTPConfig holds SMTP server configuration.
//
// With the defaults (localhost:1025, no auth) messages land in a local
// Mailhog. Production points this at a real relay with credentials.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // Empty disables authentication
	Password string
	From     string // Sender address
	FromName string // Sender display name
}

const (
	// DefaultFromEmail is the default sender for transactional emails.
	DefaultFromEmail = "noreply@fabricacollective.com"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Amplify"
)
