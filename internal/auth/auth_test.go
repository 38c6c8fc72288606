package auth_test

import (
	"testing"
	"time"

	"github.com/wanderly/tour-bookings/internal/auth"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !auth.CheckPassword("correct horse battery staple", hash) {
		t.Error("expected matching password to verify")
	}
	if auth.CheckPassword("wrong password", hash) {
		t.Error("expected non-matching password to fail")
	}
}

func TestPasswordChangedAfter(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		changedAt time.Time
		want      bool
	}{
		{"never changed", time.Time{}, false},
		{"changed before issue", issued.Add(-time.Hour), false},
		{"changed after issue", issued.Add(time.Hour), true},
		{"changed same second", issued, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := auth.PasswordChangedAfter(tc.changedAt, issued); got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNewResetToken(t *testing.T) {
	token, digest, expires, err := auth.NewResetToken()
	if err != nil {
		t.Fatal(err)
	}
	if token == "" || digest == "" {
		t.Fatal("expected non-empty token and digest")
	}
	if token == digest {
		t.Error("digest must differ from the plaintext token")
	}
	if auth.HashResetToken(token) != digest {
		t.Error("digest must be the sha256 of the token")
	}
	ttl := time.Until(expires)
	if ttl <= 9*time.Minute || ttl > 10*time.Minute {
		t.Errorf("expected roughly 10 minute expiry, got %v", ttl)
	}
}

func TestTokenService_SignAndVerify(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)

	token, err := svc.Sign("64f1c5e2a9b3d80012345678")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "64f1c5e2a9b3d80012345678" {
		t.Errorf("unexpected subject %q", claims.UserID)
	}
	if claims.IssuedAt.IsZero() {
		t.Error("expected issued-at to be set")
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	token, err := auth.NewTokenService("secret-a", time.Hour).Sign("64f1c5e2a9b3d80012345678")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.NewTokenService("secret-b", time.Hour).Verify(token); err == nil {
		t.Fatal("expected verification to fail with a different secret")
	}
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	svc := auth.NewTokenService("test-secret", -time.Minute)

	token, err := svc.Sign("64f1c5e2a9b3d80012345678")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
