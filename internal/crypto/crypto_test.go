package crypto

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	a, err := New([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ct, err := a.EncryptToString("portal-password")
	if err != nil {
		t.Fatalf("EncryptToString: %v", err)
	}
	if ct == "portal-password" {
		t.Fatal("ciphertext equals plaintext")
	}
	pt, err := a.DecryptString(ct)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if pt != "portal-password" {
		t.Errorf("DecryptString = %q, want %q", pt, "portal-password")
	}
}

func TestDecryptTampered(t *testing.T) {
	a, err := New([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ct, err := a.EncryptToString("secret")
	if err != nil {
		t.Fatalf("EncryptToString: %v", err)
	}
	tampered := strings.Map(func(r rune) rune {
		if r == 'A' {
			return 'B'
		}
		return 'A'
	}, ct)
	if _, err := a.DecryptString(tampered); err == nil {
		t.Error("DecryptString accepted tampered ciphertext")
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	if _, err := New([]byte("short")); err == nil {
		t.Error("New accepted a 5 byte key")
	}
}

func TestDecryptTooShort(t *testing.T) {
	a, err := New([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.DecryptString("QUJD"); err == nil {
		t.Error("DecryptString accepted ciphertext shorter than the nonce")
	}
}
