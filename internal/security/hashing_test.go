package security

import (
	"errors"
	"strings"
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("Secr3t!pass")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "Secr3t!pass" {
		t.Fatalf("Hash = %q, want a bcrypt hash", hash)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash = %q, want bcrypt prefix", hash)
	}
	if err := h.Compare(hash, "Secr3t!pass"); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongSecret(t *testing.T) {
	h := NewHasher(4)
	hash, _ := h.Hash("Secr3t!pass")
	if err := h.Compare(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare wrong secret: err = %v, want ErrPasswordMismatch", err)
	}
}

func TestHasher_CompareMalformedHash(t *testing.T) {
	h := NewHasher(4)
	err := h.Compare("not-a-hash", "whatever")
	if err == nil {
		t.Fatal("Compare with malformed hash should fail")
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("malformed hash should not be reported as a mismatch")
	}
}

func TestNewHasher_Cost(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{12, 12},
		{0, 10},
		{-1, 10},
		{2, 4},
		{40, 31},
	}
	for _, tt := range tests {
		if got := NewHasher(tt.in).Cost; got != tt.want {
			t.Errorf("NewHasher(%d).Cost = %d, want %d", tt.in, got, tt.want)
		}
	}
}
