package auth_test

import (
	"encoding/hex"
	"testing"

	"github.com/verdantio/hydrofarm-backend/internal/auth"
)

func TestGenerateToken_Length(t *testing.T) {
	token, err := auth.GenerateToken(20)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(token) != 40 {
		t.Errorf("Expected 40 hex characters for 20 bytes, got %d", len(token))
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Errorf("Expected valid hex, got %s", token)
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	a, err := auth.GenerateToken(20)
	if err != nil {
		t.Fatalf("first token failed: %v", err)
	}
	b, err := auth.GenerateToken(20)
	if err != nil {
		t.Fatalf("second token failed: %v", err)
	}

	if a == b {
		t.Error("Expected tokens to differ")
	}
}
