// Package auth carries the authenticated principal through protocol calls.
// Account management itself is an external collaborator; the backend only
// consumes the identity a trusted gateway attaches to each request.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Principal is the authenticated user a protocol call acts on behalf of.
// It is passed explicitly, never read from ambient request state.
type Principal struct {
	UserID uuid.UUID
}

// GenerateToken returns a random hex bearer secret of n bytes entropy.
func GenerateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
