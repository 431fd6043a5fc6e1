// Package auth holds credential primitives: password hashing, bearer
// tokens and the request Principal.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// PasswordCost is the bcrypt work factor for new hashes.
	PasswordCost = 12

	// bcrypt ignores everything past 72 bytes; longer inputs are an error
	// in x/crypto, so they are truncated first.
	maxPasswordBytes = 72
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncate(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. A malformed hash is
// treated as a mismatch.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password)) == nil
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
