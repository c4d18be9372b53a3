package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultSecretSize is large enough for both the session and CSRF keys.
const DefaultSecretSize = 32

// RandomSecret returns size random bytes, base64 encoded.
func RandomSecret(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("invalid secret size %d", size)
	}

	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
