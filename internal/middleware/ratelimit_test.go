package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fabricacollective/amplify/internal/auth"
	"github.com/fabricacollective/amplify/internal/domain"
	"github.com/fabricacollective/amplify/internal/ratelimit"
	"github.com/google/uuid"
)

func TestRateLimitMiddleware_AnonymousByIP(t *testing.T) {
	limiter := ratelimit.New(testLogger())
	mw := NewRateLimitMiddleware(limiter, testLogger())
	policy := Policy{Route: "test", Limit: 10, AnonLimit: 3, Window: time.Minute}
	handler := mw.Limit(policy)(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/generate", nil)
		req.RemoteAddr = ip + ":51234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// Anonymous limit is 3
	for i := 0; i < 3; i++ {
		if rec := send("10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := send("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	body := strings.TrimSpace(rec.Body.String())
	want := `{"error":"Too many requests. Please try again later."}`
	if body != want {
		t.Errorf("body = %s, want %s", body, want)
	}
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 || retryAfter > 60 {
		t.Errorf("Retry-After = %q, want integer in [1,60]", rec.Header().Get("Retry-After"))
	}

	// A different IP is unaffected
	if rec := send("10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", rec.Code)
	}
}

func TestRateLimitMiddleware_AuthenticatedByUser(t *testing.T) {
	limiter := ratelimit.New(testLogger())
	mw := NewRateLimitMiddleware(limiter, testLogger())
	policy := Policy{Route: "test", Limit: 2, AnonLimit: 1, Window: time.Minute}
	handler := mw.Limit(policy)(okHandler())

	user := &domain.User{ID: uuid.New()}

	send := func(u *domain.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/generate", nil)
		req.RemoteAddr = "10.0.0.1:51234"
		if u != nil {
			req = req.WithContext(auth.SetUser(req.Context(), u))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// Authenticated gets the higher limit
	for i := 0; i < 2; i++ {
		if rec := send(user); rec.Code != http.StatusOK {
			t.Fatalf("auth request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := send(user); rec.Code != http.StatusTooManyRequests {
		t.Error("third authenticated request should be limited")
	}

	// Anonymous from the same IP has its own counter and limit
	if rec := send(nil); rec.Code != http.StatusOK {
		t.Errorf("anonymous from same IP status = %d, want 200", rec.Code)
	}
	if rec := send(nil); rec.Code != http.StatusTooManyRequests {
		t.Error("second anonymous request should be limited at AnonLimit=1")
	}
}

func TestRateLimitMiddleware_GenerationPoliciesAnonLimit(t *testing.T) {
	// Both generation endpoints reach the LLM, so anonymous traffic gets
	// the same tighter limit on each.
	for _, policy := range []Policy{PolicyGenerate, PolicyRemix} {
		limiter := ratelimit.New(testLogger())
		mw := NewRateLimitMiddleware(limiter, testLogger())
		handler := mw.Limit(policy)(okHandler())

		req := httptest.NewRequest("POST", "/api/"+policy.Route, nil)
		req.RemoteAddr = "10.0.0.3:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
			t.Errorf("%s: anonymous X-RateLimit-Limit = %q, want 5", policy.Route, got)
		}
	}
}

func TestRateLimitMiddleware_RemainingHeader(t *testing.T) {
	limiter := ratelimit.New(testLogger())
	mw := NewRateLimitMiddleware(limiter, testLogger())
	policy := Policy{Route: "test", Limit: 5, Window: time.Minute}
	handler := mw.Limit(policy)(okHandler())

	req := httptest.NewRequest("POST", "/api/generate", nil)
	req.RemoteAddr = "10.0.0.9:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}
}
