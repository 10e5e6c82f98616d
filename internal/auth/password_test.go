package auth

import (
	"encoding/base64"
	"testing"
)

func TestNewCredentialProducesExpectedLengths(t *testing.T) {
	saltB64, hashB64, err := NewCredential("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		t.Fatalf("decode salt: %v", err)
	}
	hash, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		t.Fatalf("decode hash: %v", err)
	}
	if len(salt) != saltBytes {
		t.Errorf("salt length = %d, want %d", len(salt), saltBytes)
	}
	if len(hash) != hashBytes {
		t.Errorf("hash length = %d, want %d", len(hash), hashBytes)
	}
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	salt, hash, err := NewCredential("s3cr3t")
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	if !VerifyPassword("s3cr3t", salt, hash) {
		t.Error("VerifyPassword rejected the correct password")
	}
	if VerifyPassword("wrong", salt, hash) {
		t.Error("VerifyPassword accepted an incorrect password")
	}
}

func TestNewCredentialSaltsAreDistinct(t *testing.T) {
	salt1, hash1, _ := NewCredential("same-password")
	salt2, hash2, _ := NewCredential("same-password")
	if salt1 == salt2 {
		t.Error("two calls to NewCredential produced the same salt")
	}
	if hash1 == hash2 {
		t.Error("two calls to NewCredential with the same password produced the same hash")
	}
}
