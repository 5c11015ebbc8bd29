package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyHS256(t *testing.T) {
	claims := Claims{
		Sub:   "admin-1",
		Email: "admin@example.com",
		Role:  "admin",
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(time.Hour).Unix(),
	}
	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	got, err := VerifyHS256(token, "secret")
	if err != nil {
		t.Fatalf("VerifyHS256 failed: %v", err)
	}
	if got.Sub != claims.Sub || got.Email != claims.Email || got.Role != claims.Role {
		t.Fatalf("claims mismatch: %+v", got)
	}

	if _, err := VerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerifyHS256_Expired(t *testing.T) {
	claims := Claims{
		Sub: "admin-1",
		Exp: time.Now().Add(-time.Minute).Unix(),
	}
	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := VerifyHS256(token, "secret"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestVerifyHS256_Malformed(t *testing.T) {
	for _, tok := range []string{"", "a.b", "a.b.c.d", "not-a-token"} {
		if _, err := VerifyHS256(tok, "secret"); err == nil {
			t.Fatalf("expected rejection of %q", tok)
		}
	}
}
