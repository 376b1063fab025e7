package security

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidate(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, exp, err := p.IssueAccess("acc-1", "coordinator")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("token empty")
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiresAt = %v, want in the future", exp)
	}

	claims, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.Subject != "acc-1" || claims.Role != "coordinator" {
		t.Errorf("claims = sub %q role %q, want acc-1 coordinator", claims.Subject, claims.Role)
	}
	if claims.ID == "" {
		t.Error("jti should be set")
	}
}

func TestTokenProvider_RSAKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	p := NewTokenProvider(key, key.Public(), "iss", "aud", time.Minute)
	token, _, err := p.IssueAccess("acc-1", "applicant")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(token); err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
}

func TestTokenProvider_ValidateAccessInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateAccess("invalid-token"); err != ErrInvalidToken {
		t.Errorf("ValidateAccess invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_RejectsForeignTokens(t *testing.T) {
	p, _ := NewTestTokenProvider()
	other, _ := NewTestTokenProvider()

	foreign, _, err := other.IssueAccess("acc-1", "applicant")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(foreign); err != ErrInvalidToken {
		t.Errorf("token signed by another key: want ErrInvalidToken, got %v", err)
	}

	key, _, _ := GenerateEphemeralKey()
	wrongAud := NewTokenProvider(key, key.Public(), TestIssuer, "someone-else", time.Minute)
	sameKey := NewTokenProvider(key, key.Public(), TestIssuer, TestAudience, time.Minute)
	tok, _, _ := wrongAud.IssueAccess("acc-1", "applicant")
	if _, err := sameKey.ValidateAccess(tok); err != ErrInvalidToken {
		t.Errorf("wrong audience: want ErrInvalidToken, got %v", err)
	}

	wrongIss := NewTokenProvider(key, key.Public(), "other-issuer", TestAudience, time.Minute)
	tok, _, _ = wrongIss.IssueAccess("acc-1", "applicant")
	if _, err := sameKey.ValidateAccess(tok); err != ErrInvalidToken {
		t.Errorf("wrong issuer: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_Expired(t *testing.T) {
	p, _ := NewTestTokenProvider()
	issuedAt := time.Now().Add(-time.Hour)
	p.now = func() time.Time { return issuedAt }
	token, _, err := p.IssueAccess("acc-1", "applicant")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	p.now = time.Now
	if _, err := p.ValidateAccess(token); err != ErrInvalidToken {
		t.Errorf("expired token: want ErrInvalidToken, got %v", err)
	}
}
