package auth

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword error: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Fatal("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := MakeToken("admin-1", "admin@system.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("MakeToken error: %v", err)
	}

	claims, err := ParseToken(tok, "secret")
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.AdminID != "admin-1" {
		t.Fatalf("admin id = %q", claims.AdminID)
	}
	if claims.Email != "admin@system.com" {
		t.Fatalf("email = %q", claims.Email)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	tok, err := MakeToken("admin-1", "admin@system.com", "secret", time.Hour)
	if err != nil {
		t.Fatalf("MakeToken error: %v", err)
	}

	if _, err := ParseToken(tok, "other-secret"); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
}

func TestParseToken_Expired(t *testing.T) {
	tok, err := MakeToken("admin-1", "admin@system.com", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("MakeToken error: %v", err)
	}

	if _, err := ParseToken(tok, "secret"); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("not.a.token", "secret"); err == nil {
		t.Fatal("garbage token accepted")
	}
}
