package auth

import (
	"testing"
	"time"
)

func newTestTokens(t *testing.T) *Tokens {
	t.Helper()
	tok, err := NewTokens("test-secret", "fieldpulse", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tok
}

func TestGenerateAndValidate(t *testing.T) {
	tok := newTestTokens(t)

	signed, err := tok.Generate("01USER", "admin")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := tok.ParseAndValidate(signed)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "01USER" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	tok := newTestTokens(t)
	for _, bad := range []string{"", "  ", "not.a.token"} {
		if _, err := tok.ParseAndValidate(bad); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", bad, err)
		}
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	tok := newTestTokens(t)
	other, err := NewTokens("other-secret", "fieldpulse", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	signed, err := other.Generate("01USER", "others")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tok.ParseAndValidate(signed); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	tok := newTestTokens(t)
	tok.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	signed, err := tok.Generate("01USER", "others")
	if err != nil {
		t.Fatal(err)
	}
	tok.now = time.Now
	if _, err := tok.ParseAndValidate(signed); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
