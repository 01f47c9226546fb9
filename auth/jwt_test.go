package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"webshrink/models"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndVerify(t *testing.T) {
	claims := NewClaims("webshrink", "ci-bot", time.Hour, "jobs:write")
	token, err := IssueToken(claims, testSecret)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	got, err := VerifyToken(token, VerifyConfig{SecretKey: testSecret, ExpectedIssuer: "webshrink"})
	if err != nil {
		t.Fatalf("Failed to verify token: %v", err)
	}
	if got.Subject != "ci-bot" || got.Issuer != "webshrink" {
		t.Errorf("Unexpected claims %+v", got)
	}
	if !got.Allows("jobs:write") || got.Allows("history:read") {
		t.Errorf("Unexpected scopes %v", got.Scopes)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(NewClaims("webshrink", "a", time.Hour), testSecret)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	other := []byte(strings.Repeat("x", 32))
	if _, err := VerifyToken(token, VerifyConfig{SecretKey: other}); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyTimeWindow(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	expired := models.TokenClaims{Subject: "a", IssuedAt: now.Add(-2 * time.Hour).Unix(), ExpiresAt: now.Add(-time.Hour).Unix()}
	future := models.TokenClaims{Subject: "a", IssuedAt: now.Add(time.Hour).Unix()}

	cfg := VerifyConfig{SecretKey: testSecret, Now: func() time.Time { return now }}

	token, _ := IssueToken(expired, testSecret)
	if _, err := VerifyToken(token, cfg); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Expected ErrTokenExpired, got %v", err)
	}

	token, _ = IssueToken(future, testSecret)
	if _, err := VerifyToken(token, cfg); !errors.Is(err, ErrTokenNotYetValid) {
		t.Errorf("Expected ErrTokenNotYetValid, got %v", err)
	}

	cfg.ClockSkew = 2 * time.Hour
	if _, err := VerifyToken(token, cfg); err != nil {
		t.Errorf("Clock skew should accept the token, got %v", err)
	}
}

func TestVerifyIssuerAndFormat(t *testing.T) {
	token, _ := IssueToken(NewClaims("someone-else", "a", 0), testSecret)
	if _, err := VerifyToken(token, VerifyConfig{SecretKey: testSecret, ExpectedIssuer: "webshrink"}); !errors.Is(err, ErrInvalidIssuer) {
		t.Errorf("Expected ErrInvalidIssuer, got %v", err)
	}
	if _, err := VerifyToken("", VerifyConfig{SecretKey: testSecret}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for empty token, got %v", err)
	}
	if _, err := VerifyToken("not.a.jwt", VerifyConfig{SecretKey: testSecret}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestWeakSecret(t *testing.T) {
	if _, err := IssueToken(NewClaims("", "a", 0), []byte("short")); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("Expected ErrWeakSecret, got %v", err)
	}
	secret, err := GenerateSecret(8)
	if err != nil {
		t.Fatalf("Failed to generate secret: %v", err)
	}
	if len(secret) != 2*MinSecretLen {
		t.Errorf("Expected %d hex chars, got %d", 2*MinSecretLen, len(secret))
	}
}
