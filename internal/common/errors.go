// Package common defines shared sentinel errors and small helpers used across
// the wallet core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Authenticator errors.
	ErrCapability          = errors.New("capability not supported")
	ErrUserCancelled       = errors.New("user cancelled")
	ErrAssertionMismatch   = errors.New("assertion mismatch")
	ErrAuthenticatorFailed = errors.New("authenticator failed")

	// Cipher errors.
	ErrIntegrity = errors.New("integrity check failed")

	// Repository-level errors.
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage error")
	ErrVersionConflict = errors.New("version conflict")

	// Migration flow control.
	ErrAlreadyEncrypted  = errors.New("wallet already encrypted")
	ErrPlaintextMismatch = errors.New("stored ciphertext does not match plaintext")

	// Validation errors.
	ErrInvalidInput = errors.New("invalid input")
)
