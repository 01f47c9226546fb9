package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateSecret returns a random hex secret of n bytes, suitable for auth.jwt_secret.
func GenerateSecret(n int) (string, error) {
	if n < MinSecretLen {
		n = MinSecretLen
	}
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
