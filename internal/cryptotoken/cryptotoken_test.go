package cryptotoken

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	key := bytes.Repeat([]byte{0x11}, keyLen)
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	c := testCipher(t)
	want := []byte(`{"access_token":"secret_access","refresh_token":"secret_refresh"}`)

	enc, err := c.Encrypt(want)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains([]byte(enc), []byte("secret_access")) {
		t.Fatal("ciphertext leaks plaintext")
	}

	got, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("roundtrip mismatch: got %s want %s", got, want)
	}
}

func TestNonceUniqueness(t *testing.T) {
	c := testCipher(t)
	v := []byte(`{"token":"x"}`)

	a, err := c.Encrypt(v)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt(v)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same value produced identical ciphertext")
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	c := testCipher(t)
	enc, err := c.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	other, err := New(bytes.Repeat([]byte{0x22}, keyLen))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.Decrypt(enc); err == nil {
		t.Fatal("expected decrypt failure with wrong key")
	}
}

func TestDecryptTruncatedFails(t *testing.T) {
	c := testCipher(t)
	enc, err := c.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c.Decrypt(enc[:len(enc)/2]); err == nil {
		t.Fatal("expected decrypt failure on truncated ciphertext")
	}
}

func TestParseKeyHexAndBase64(t *testing.T) {
	raw := bytes.Repeat([]byte{0x33}, keyLen)

	hexKey := hex.EncodeToString(raw)
	got, err := ParseKey(hexKey)
	if err != nil {
		t.Fatalf("ParseKey(hex): %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatal("hex key decoded to wrong bytes")
	}

	b64Key := base64.StdEncoding.EncodeToString(raw)
	got, err = ParseKey(b64Key)
	if err != nil {
		t.Fatalf("ParseKey(base64): %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatal("base64 key decoded to wrong bytes")
	}
}

func TestParseKeyWrongLengthFails(t *testing.T) {
	if _, err := ParseKey("deadbeef"); err == nil {
		t.Fatal("expected error for short key")
	}
}
