package common

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestSecretRoundTrip(t *testing.T) {
	sealed, err := EncryptSecret("panel-key", "EAAG-long-access-token")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := DecryptSecret("panel-key", sealed)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "EAAG-long-access-token" {
		t.Fatalf("round trip mismatch: %q", plain)
	}

	// a fresh seal of the same value must differ (random salt and iv)
	sealed2, _ := EncryptSecret("panel-key", "EAAG-long-access-token")
	if sealed == sealed2 {
		t.Fatal("two seals produced identical ciphertext")
	}
}

func TestSecretWrongKeyFails(t *testing.T) {
	sealed, err := EncryptSecret("key-a", "value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptSecret("key-b", sealed); err == nil {
		t.Fatal("decrypt with wrong key must fail")
	}
}

func TestSecretTamperDetected(t *testing.T) {
	sealed, err := EncryptSecret("key", "value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)
	if _, err := DecryptSecret("key", tampered); err == nil {
		t.Fatal("tampered ciphertext must fail authentication")
	}
}

func TestSecretRejectsGarbage(t *testing.T) {
	if _, err := DecryptSecret("key", "not base64 at all!!"); err == nil {
		t.Fatal("non-base64 input must fail")
	}
	short := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 10)))
	if _, err := DecryptSecret("key", short); err == nil {
		t.Fatal("truncated input must fail")
	}
}
