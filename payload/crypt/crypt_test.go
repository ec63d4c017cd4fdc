package crypt

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, chacha20poly1305.KeySize)
	plaintext := []byte("archived block payload")
	aad := []byte("fsid=3")

	sealed, err := Encrypt(ChaCha20Poly1305, key, plaintext, aad)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Fatal("sealed output must not contain the plaintext verbatim")
	}
	got, err := Decrypt(ChaCha20Poly1305, key, sealed, aad)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, chacha20poly1305.KeySize)
	sealed, err := Encrypt(ChaCha20Poly1305, key, []byte("payload"), nil)
	if err != nil {
		t.Fatal(err)
	}
	sealed[len(sealed)-1] ^= 0xff
	if _, err := Decrypt(ChaCha20Poly1305, key, sealed, nil); err == nil {
		t.Fatal("expected authentication failure for tampered ciphertext")
	}
}

func TestDecryptRejectsWrongAdditionalData(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, chacha20poly1305.KeySize)
	sealed, err := Encrypt(ChaCha20Poly1305, key, []byte("payload"), []byte("fsid=1"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(ChaCha20Poly1305, key, sealed, []byte("fsid=2")); err == nil {
		t.Fatal("expected authentication failure for mismatched additional data")
	}
}

func TestNoneAlgoPassesThrough(t *testing.T) {
	plaintext := []byte("unchanged")
	sealed, err := Encrypt(None, nil, plaintext, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sealed, plaintext) {
		t.Fatal("None algo must pass bytes through unchanged")
	}
}

func TestUnknownAlgo(t *testing.T) {
	_, err := Encrypt(99, nil, []byte("x"), nil)
	if err == nil || !strings.Contains(err.Error(), "unknown encryption algorithm") {
		t.Fatalf("expected unknown-algorithm error, got %v", err)
	}
}
