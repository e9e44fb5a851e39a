package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	tokens, err := Issue("asharao", RoleStudent, "BCU-MCA-1-1", "campus-test", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(tokens.AccessToken, "secret", "campus-test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "asharao" || claims.Role != RoleStudent || claims.ClassCode != "BCU-MCA-1-1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParse_WrongKey(t *testing.T) {
	tokens, _ := Issue("asharao", RoleStudent, "", "campus-test", "secret", time.Minute, time.Hour)
	if _, err := Parse(tokens.AccessToken, "other-secret", "campus-test"); err == nil {
		t.Error("expected error for wrong signing key")
	}
}

func TestParse_WrongIssuer(t *testing.T) {
	tokens, _ := Issue("asharao", RoleStudent, "", "campus-test", "secret", time.Minute, time.Hour)
	if _, err := Parse(tokens.AccessToken, "secret", "someone-else"); err == nil {
		t.Error("expected error for issuer mismatch")
	}
}

func TestParse_Expired(t *testing.T) {
	tokens, _ := Issue("asharao", RoleStudent, "", "campus-test", "secret", -time.Minute, time.Hour)
	if _, err := Parse(tokens.AccessToken, "secret", "campus-test"); err == nil {
		t.Error("expected error for expired token")
	}
}
