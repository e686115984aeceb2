package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fabricacollective/amplify/internal/origin"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestOriginMiddleware(t *testing.T) {
	mw := NewOriginMiddleware(origin.NewGuard(""), testLogger())
	handler := mw.Handler(okHandler())

	testCases := []struct {
		name       string
		method     string
		origin     string
		referer    string
		wantStatus int
	}{
		{"allowed origin", "POST", "http://localhost:3000", "", http.StatusOK},
		{"allowed referer only", "POST", "", "http://localhost:3000/app", http.StatusOK},
		{"vercel preview", "POST", "https://amplify-git-main-fabrica.vercel.app", "", http.StatusOK},
		{"unknown origin", "POST", "https://evil.example.com", "", http.StatusForbidden},
		{"no headers on mutation", "POST", "", "", http.StatusForbidden},
		{"vercel lookalike", "POST", "https://notvercel.app.evil.com", "", http.StatusForbidden},
		{"get passes without headers", "GET", "", "", http.StatusOK},
		{"delete is checked", "DELETE", "https://evil.example.com", "", http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/generate", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.referer != "" {
				req.Header.Set("Referer", tc.referer)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusForbidden {
				body := strings.TrimSpace(rec.Body.String())
				want := `{"error":"Forbidden - origin not allowed"}`
				if body != want {
					t.Errorf("body = %s, want %s", body, want)
				}
			}
		})
	}
}
