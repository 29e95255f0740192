package auth

import "testing"

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken(42, "alice", "test-secret")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAccessToken(token, "test-secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("expected subject=42, got %s", claims.Subject)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected username=alice, got %s", claims.Username)
	}
	if claims.ExpiresAt == nil {
		t.Fatal("expected an expiry")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(1, "bob", "secret-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseAccessToken(token, "secret-b"); err == nil {
		t.Fatal("expected parse to fail with wrong secret")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ParseAccessToken("not.a.token", "secret"); err == nil {
		t.Fatal("expected parse to fail")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("expected hash to differ from plaintext")
	}
	if !CheckPassword("hunter22", hash) {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword("hunter23", hash) {
		t.Fatal("expected wrong password to fail")
	}
}
