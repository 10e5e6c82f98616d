package auth

import "errors"

// Sentinel errors surfaced by UserRepository implementations. Handlers map
// these to the AuthenticationError taxonomy described in SPEC_FULL.md
// section 7; none of them ever carry a password.
var (
	ErrUserNotFound      = errors.New("auth: user not found")
	ErrUsernameTaken     = errors.New("auth: username already exists")
	ErrInvalidCredential = errors.New("auth: invalid username or password")
	ErrAccountLocked     = errors.New("auth: account locked after too many failed attempts")
)
