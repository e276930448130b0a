package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	user := &User{
		ID:       "usr-001",
		Username: "admin",
		IsAdmin:  true,
	}
	secret := "test-secret-key-for-jwt-signing"

	token, err := GenerateToken(user, secret, 15)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if token == "" {
		t.Fatal("GenerateToken() returned empty token")
	}

	claims, err := ParseToken(token, secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "usr-001" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "usr-001")
	}

	if claims.Username != "admin" {
		t.Errorf("Username = %q, want %q", claims.Username, "admin")
	}

	if !claims.Admin {
		t.Error("Admin claim should be true")
	}

	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	user := &User{ID: "usr-001", Username: "alice"}

	token, err := GenerateToken(user, "correct-secret", 15)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	_, err = ParseToken(token, "wrong-secret")
	if err == nil {
		t.Error("ParseToken() should fail with wrong secret")
	}
}

func TestParseToken_Malformed(t *testing.T) {
	for _, bad := range []string{"", "abc.def", "not-a-valid-jwt"} {
		if _, err := ParseToken(bad, "secret"); err == nil {
			t.Errorf("ParseToken(%q) should fail", bad)
		}
	}
}

func TestGenerateToken_DefaultTTL(t *testing.T) {
	user := &User{ID: "usr-001", Username: "alice"}

	// TTL of 0 defaults to one hour.
	token, err := GenerateToken(user, "secret", 0)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ParseToken(token, "secret")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	expectedExpiry := time.Now().Add(60 * time.Minute)
	diff := claims.ExpiresAt.Time.Sub(expectedExpiry)
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("default TTL should be ~60 minutes, got expiry diff of %v", diff)
	}
}

func TestGenerateSecret(t *testing.T) {
	raw, err := GenerateSecret(16)
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}

	if len(raw) != 32 {
		t.Errorf("GenerateSecret(16) length = %d, want 32 hex chars", len(raw))
	}

	raw2, _ := GenerateSecret(16)
	if raw == raw2 {
		t.Error("two generated secrets should be unique")
	}
}
