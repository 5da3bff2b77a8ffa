package auth

import (
	"testing"
	"time"
)

func TestToken_Roundtrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Issue(42, "teacher")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Role != "teacher" {
		t.Errorf("Role = %q, want teacher", claims.Role)
	}
}

func TestToken_WrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret", time.Hour).Issue(1, "admin")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := NewTokenIssuer("other", time.Hour).Verify(token); err == nil {
		t.Fatal("Verify() accepted token signed with a different secret")
	}
}

func TestToken_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", -time.Minute)

	token, err := issuer.Issue(1, "student")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("Verify() accepted expired token")
	}
}

func TestToken_Garbage(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	if _, err := issuer.Verify("not.a.token"); err == nil {
		t.Fatal("Verify() accepted garbage input")
	}
}
