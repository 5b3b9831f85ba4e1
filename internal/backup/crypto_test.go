package backup

import (
	"bytes"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)

	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte("This is test database content with some data in it.")

	encrypted, err := Encrypt(original, "correct horse")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, original) {
		t.Error("ciphertext contains plaintext")
	}

	decrypted, err := Decrypt(encrypted, "correct horse")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, original) {
		t.Errorf("round trip mismatch: got %q", decrypted)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := Encrypt([]byte("secret data"), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(encrypted, "wrong"); err == nil {
		t.Fatal("expected error for wrong passphrase")
	}
}

func TestDecryptTruncated(t *testing.T) {
	if _, err := Decrypt([]byte("short"), "any"); err == nil {
		t.Fatal("expected error for truncated data")
	}
}

func TestEncryptUniqueOutput(t *testing.T) {
	plain := []byte("same input")

	a, err := Encrypt(plain, "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := Encrypt(plain, "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same input should differ")
	}
}
