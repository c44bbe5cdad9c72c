package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const resetSecretSize = 32

// NewResetSecret generates one password-reset secret. The plaintext is
// hex-encoded for delivery to the account owner; only the digest may be
// persisted.
func NewResetSecret() (plaintext, digest string, err error) {
	var secret [resetSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", "", err
	}

	plaintext = hex.EncodeToString(secret[:])
	return plaintext, HashResetSecret(plaintext), nil
}

// HashResetSecret maps a presented reset secret to its stored form:
// hex-encoded SHA-256 of the plaintext.
func HashResetSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
