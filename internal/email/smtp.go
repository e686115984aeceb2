package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
)

// passwordResetHTML is the HTML body of the reset mail. The template is
// compiled in rather than loaded from disk; the API ships no template
// directory and a missing file should be a compile-time problem, not a
// runtime one.
const passwordResetHTML = `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', sans-serif; color: #1f2933; max-width: 520px; margin: 0 auto; padding: 24px;">
  <h2 style="color: #111827;">Reset your Amplify password</h2>
  <p>Hi {{.Name}},</p>
  <p>We received a request to reset your password. Click the button below to choose a new one.</p>
  <p style="margin: 28px 0;">
    <a href="{{.ResetURL}}" style="background: #4f46e5; color: #ffffff; padding: 12px 24px; border-radius: 6px; text-decoration: none;">Reset password</a>
  </p>
  <p>This link expires in 1 hour. If you didn't request a reset, you can safely ignore this email; your password will not change.</p>
  <p>The Amplify Team</p>
</body>
</html>
`

var passwordResetTmpl = template.Must(template.New("password_reset").Parse(passwordResetHTML))

// SMTPService sends mail over plain SMTP. Works against Mailhog in
// development and any authenticated relay in production.
type SMTPService struct {
	config  SMTPConfig
	baseURL string
	logger  *slog.Logger

	// sendMail is swapped out in tests to capture the wire message.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPService creates an SMTP-backed email service. baseURL is the
// public site URL used to build links in outgoing mail.
func NewSMTPService(config SMTPConfig, baseURL string, logger *slog.Logger) *SMTPService {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	return &SMTPService{
		config:   config,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
		sendMail: smtp.SendMail,
	}
}

// SendPasswordResetEmail sends a password reset link to a user.
func (s *SMTPService) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, token)

	var htmlBody bytes.Buffer
	err := passwordResetTmpl.Execute(&htmlBody, map[string]any{
		"Name":     name,
		"ResetURL": resetURL,
	})
	if err != nil {
		return fmt.Errorf("failed to render password reset email: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

We received a request to reset your password. Open the link below to choose a new one:

%s

This link expires in 1 hour. If you didn't request a reset, you can safely ignore this email; your password will not change.

The Amplify Team
`, name, resetURL)

	return s.send(ctx, Message{
		To:       to,
		Subject:  "Reset your Amplify password",
		HTMLBody: htmlBody.String(),
		TextBody: textBody,
	})
}

// send delivers one message, honoring context cancellation. net/smtp has
// no context support, so the send runs in a goroutine and a cancelled
// context abandons the wait rather than the connection.
func (s *SMTPService) send(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(addr, auth, s.config.From, []string{msg.To}, buildMessage(s.config, msg))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			s.logger.Error("failed to send email",
				"to", msg.To,
				"subject", msg.Subject,
				"error", err,
			)
			return fmt.Errorf("failed to send email: %w", err)
		}
	}

	s.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// buildMessage constructs the raw multipart message with headers.
func buildMessage(config SMTPConfig, msg Message) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", config.FromName, config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")

	const boundary = "=_amplify_alt_boundary_="
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.TextBody)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTMLBody)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}

var _ Service = (*SMTPService)(nil)
