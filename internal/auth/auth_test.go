package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Setenv("PULABANK_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("teller-1", []string{"teller", "teller", " "}, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "teller-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "teller" {
		t.Fatalf("roles not deduped: %v", claims.Roles)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	t.Setenv("PULABANK_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	for _, token := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	t.Setenv("PULABANK_AUTH_SECRET", "first-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("teller-1", nil, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("PULABANK_AUTH_SECRET", "other-secret")
	ResetSecretForTests()

	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	t.Setenv("PULABANK_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("teller-1", nil, time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}
