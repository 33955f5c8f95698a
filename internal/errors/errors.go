package errors

import (
	"errors"
)

// Common error types for the host model and its stores
var (
	// Client errors
	ErrClientNotFound = errors.New("client not found")
	ErrInvalidClient  = errors.New("invalid client")

	// MFA challenge errors
	ErrChallengeNotFound = errors.New("mfa challenge not found")
	ErrChallengeExpired  = errors.New("mfa challenge expired")
	ErrTooManyAttempts   = errors.New("too many otp attempts")
	ErrOTPMismatch       = errors.New("otp does not match")
)

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
