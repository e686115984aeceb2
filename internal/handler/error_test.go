package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fabricacollective/amplify/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	logger := testLogger()

	// Internal errors wrap raw persistence errors that must never leak
	dbErr := &mockDatabaseError{message: "pq: relation \"users\" does not exist"}
	internalErr := domain.Internal(dbErr, "Repository.GetUserByEmail", "Database query failed")

	req := httptest.NewRequest("GET", "/api/usage", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, internalErr)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "pq:") {
		t.Errorf("response exposes database error: %s", body)
	}
	if strings.Contains(body, "relation") {
		t.Errorf("response exposes database schema: %s", body)
	}
	if strings.Contains(body, "Repository") {
		t.Errorf("response exposes internal operation: %s", body)
	}
	if !strings.Contains(body, "Internal server error") {
		t.Errorf("response should contain generic message, got: %s", body)
	}
}

func TestErrorResponse_UpstreamErrorHidesProvider(t *testing.T) {
	logger := testLogger()

	providerErr := &mockDatabaseError{message: "anthropic: 529 overloaded_error"}
	upstreamErr := domain.Upstream(providerErr, "GenerationService.Generate", "Provider call failed")

	req := httptest.NewRequest("POST", "/api/generate", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, upstreamErr)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "anthropic") || strings.Contains(body, "529") {
		t.Errorf("response exposes provider detail: %s", body)
	}
	if !strings.Contains(body, "Internal server error") {
		t.Errorf("response should contain generic message, got: %s", body)
	}
}

func TestErrorResponse_QuotaErrorCarriesCounters(t *testing.T) {
	logger := testLogger()

	req := httptest.NewRequest("POST", "/api/generate", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, domain.QuotaExceeded("UsageService.Check", 15, 15))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	var body struct {
		Error        string `json:"error"`
		PromptsUsed  int    `json:"prompts_used"`
		PromptsLimit int    `json:"prompts_limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error != "Monthly limit reached" {
		t.Errorf("error = %q, want %q", body.Error, "Monthly limit reached")
	}
	if body.PromptsUsed != 15 || body.PromptsLimit != 15 {
		t.Errorf("counters = %d/%d, want 15/15", body.PromptsUsed, body.PromptsLimit)
	}

	if strings.Contains(rec.Body.String(), "UsageService") {
		t.Errorf("response exposes internal operation: %s", rec.Body.String())
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	logger := testLogger()

	rawErr := &mockDatabaseError{message: "FATAL: password authentication failed for user \"postgres\""}

	req := httptest.NewRequest("GET", "/api/library", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, rawErr)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "FATAL") || strings.Contains(body, "postgres") {
		t.Errorf("response exposes raw error: %s", body)
	}
	if !strings.Contains(body, "Internal server error") {
		t.Errorf("response should contain generic message, got: %s", body)
	}
}

func TestErrorResponse_ValidationMessageReachesClient(t *testing.T) {
	logger := testLogger()

	req := httptest.NewRequest("POST", "/api/auth/signup", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, logger, domain.Invalid("UserService.Register", "Email address is malformed"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Email address is malformed") {
		t.Errorf("validation message should reach client, got: %s", body)
	}
	if strings.Contains(body, "UserService") {
		t.Errorf("response exposes internal operation: %s", body)
	}
}

func TestUnauthorizedResponse_Body(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	rec := httptest.NewRecorder()

	UnauthorizedResponse(rec, req, testLogger())

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Unauthorized"}` {
		t.Errorf("body = %s", got)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.EQUOTA, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUPSTREAM, http.StatusInternalServerError},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"no_such_code", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := ErrorCodeToHTTPStatus(tt.code); got != tt.want {
			t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

// mockDatabaseError simulates a low-level error for testing
type mockDatabaseError struct {
	message string
}

func (e *mockDatabaseError) Error() string {
	return e.message
}
