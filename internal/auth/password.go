package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// PasswordChangedAfter reports whether the password was changed after the
// token was issued. Tokens minted before a password change are rejected.
func PasswordChangedAfter(changedAt, issuedAt time.Time) bool {
	if changedAt.IsZero() {
		return false
	}
	return issuedAt.Unix() < changedAt.Unix()
}

const resetTokenTTL = 10 * time.Minute

// NewResetToken returns the plaintext token handed to the user and the
// sha256 hex digest persisted on the user document, plus its expiry.
func NewResetToken() (token, digest string, expires time.Time, err error) {
	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return "", "", time.Time{}, err
	}
	token = hex.EncodeToString(raw)
	return token, HashResetToken(token), time.Now().Add(resetTokenTTL), nil
}

func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
