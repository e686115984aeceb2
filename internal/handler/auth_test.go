package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/google/uuid"
)

// stubAuthUserService implements service.UserService for handler tests.
// Only the password reset methods are exercised here.
type stubAuthUserService struct {
	resetResult *domain.PasswordResetResult
	resetErr    error
}

func (s *stubAuthUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	panic("not implemented")
}

func (s *stubAuthUserService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	panic("not implemented")
}

func (s *stubAuthUserService) Logout(ctx context.Context, token string) error {
	panic("not implemented")
}

func (s *stubAuthUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	panic("not implemented")
}

func (s *stubAuthUserService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	panic("not implemented")
}

func (s *stubAuthUserService) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	panic("not implemented")
}

func (s *stubAuthUserService) CreatePasswordResetToken(ctx context.Context, email string) (*domain.PasswordResetResult, error) {
	if s.resetErr != nil {
		return nil, s.resetErr
	}
	return s.resetResult, nil
}

func (s *stubAuthUserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	panic("not implemented")
}

func (s *stubAuthUserService) DeleteExpiredSessions(ctx context.Context) error {
	panic("not implemented")
}

func (s *stubAuthUserService) DeleteExpiredPasswordResetTokens(ctx context.Context) error {
	panic("not implemented")
}

func (s *stubAuthUserService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	panic("not implemented")
}

func (s *stubAuthUserService) UpdateSubscription(ctx context.Context, userID uuid.UUID, tier domain.Tier, status domain.SubscriptionStatus, subscriptionID string) error {
	panic("not implemented")
}

func (s *stubAuthUserService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	panic("not implemented")
}

// sentResetEmail is one captured SendPasswordResetEmail call.
type sentResetEmail struct {
	to    string
	name  string
	token string
}

// captureEmailService records reset mails on a channel so tests can wait
// for the handler's asynchronous send.
type captureEmailService struct {
	sent chan sentResetEmail
}

func newCaptureEmailService() *captureEmailService {
	return &captureEmailService{sent: make(chan sentResetEmail, 1)}
}

func (c *captureEmailService) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	c.sent <- sentResetEmail{to: to, name: name, token: token}
	return nil
}

func TestHandlePasswordResetRequest_SendsEmail(t *testing.T) {
	userID := uuid.New()
	svc := &stubAuthUserService{
		resetResult: &domain.PasswordResetResult{
			Token:     strings.Repeat("ab", 32),
			ExpiresAt: time.Now().Add(time.Hour),
			UserID:    userID,
			Email:     "ana@example.com",
			Name:      "Ana",
		},
	}
	mailer := newCaptureEmailService()
	h := NewAuthHandler(svc, mailer, testLogger())

	req := httptest.NewRequest("POST", "/api/auth/password-reset", strings.NewReader(`{"email":"ana@example.com"}`))
	rec := httptest.NewRecorder()
	h.HandlePasswordResetRequest(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}

	select {
	case sent := <-mailer.sent:
		if sent.to != "ana@example.com" || sent.name != "Ana" {
			t.Errorf("sent to %q (%q), want ana@example.com (Ana)", sent.to, sent.name)
		}
		if sent.token != svc.resetResult.Token {
			t.Error("mail must carry the raw reset token")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reset email was never sent")
	}
}

func TestHandlePasswordResetRequest_UnknownEmail(t *testing.T) {
	svc := &stubAuthUserService{
		resetErr: domain.NotFound("UserService.CreatePasswordResetToken", "user", "ghost@example.com"),
	}
	mailer := newCaptureEmailService()
	h := NewAuthHandler(svc, mailer, testLogger())

	req := httptest.NewRequest("POST", "/api/auth/password-reset", strings.NewReader(`{"email":"ghost@example.com"}`))
	rec := httptest.NewRecorder()
	h.HandlePasswordResetRequest(rec, req)

	// Identical response to the known-email case, so the endpoint cannot
	// be used to enumerate accounts.
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "If an account exists") {
		t.Errorf("body = %s", rec.Body.String())
	}

	select {
	case sent := <-mailer.sent:
		t.Errorf("unexpected email to %q", sent.to)
	case <-time.After(50 * time.Millisecond):
	}
}
