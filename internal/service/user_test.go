package service

import (
	"strings"
	"testing"
	"time"

	"github.com/fabricacollective/amplify/internal/domain"
)

func TestValidatePassword(t *testing.T) {
	testCases := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short - 7 chars", "abcdef1", false},
		{"minimum - 8 chars", "abcdef12", true},
		{"longer - 12 chars", "abcdefgh1234", true},
		{"bcrypt limit - 72 chars", strings.Repeat("abc", 24), true},
		{"over bcrypt limit - 75 chars", strings.Repeat("abc", 25), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePassword(tc.password)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	testCases := []struct {
		name  string
		email string
		valid bool
	}{
		{"simple", "user@example.com", true},
		{"subdomain", "user@mail.example.co.uk", true},
		{"plus addressing", "user+tag@example.com", true},
		{"empty", "", false},
		{"no at", "userexample.com", false},
		{"two ats", "user@@example.com", false},
		{"leading at", "@example.com", false},
		{"trailing at", "user@", false},
		{"no dot in domain", "user@localhost", false},
		{"consecutive dots", "user..name@example.com", false},
		{"too long", strings.Repeat("a", 250) + "@x.com", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateEmail(tc.email)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestHashSessionToken(t *testing.T) {
	token, err := generateSessionToken()
	if err != nil {
		t.Fatalf("generateSessionToken: %v", err)
	}
	if len(token) != SessionTokenBytes*2 {
		t.Errorf("token length = %d, want %d", len(token), SessionTokenBytes*2)
	}

	hash := hashSessionToken(token)
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}
	if hash == token {
		t.Error("hash must differ from token")
	}
	if hashSessionToken(token) != hash {
		t.Error("hashing must be deterministic")
	}

	other, _ := generateSessionToken()
	if hashSessionToken(other) == hash {
		t.Error("distinct tokens must hash differently")
	}
}

func TestTokenLifetimes(t *testing.T) {
	if SessionDuration != 30*24*time.Hour {
		t.Errorf("SessionDuration = %v, want 30 days", SessionDuration)
	}
	if domain.PasswordResetTokenDuration >= SessionDuration {
		t.Error("reset tokens must be shorter-lived than sessions")
	}
}
