package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters fixed by spec.md testable property 6. golang.org/x/crypto
// is the teacher pack's canonical source for primitives the standard library
// doesn't provide (the stdlib has no PBKDF2); no hand-rolled KDF is used.
const (
	pbkdf2Iterations = 10000
	saltBytes        = 16
	hashBytes        = 32
)

// newSalt returns saltBytes of crypto/rand.
func newSalt() ([]byte, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("auth: generate salt: %w", err)
	}
	return salt, nil
}

// hashPassword derives the PBKDF2-HMAC-SHA256 hash of password under salt.
func hashPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, hashBytes, sha256.New)
}

// NewCredential generates a fresh salt and returns the base64-encoded salt
// and hash for storage on a User record.
func NewCredential(password string) (saltB64, hashB64 string, err error) {
	salt, err := newSalt()
	if err != nil {
		return "", "", err
	}
	hash := hashPassword(password, salt)
	return base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash), nil
}

// VerifyPassword recomputes the hash for password under the stored salt and
// compares it to the stored hash in constant time.
func VerifyPassword(password, saltB64, hashB64 string) bool {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}
	got := hashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
