package challenges

import "time"

// Challenge is a pending second factor. It is created once the first factor
// succeeded and consumed by a successful urn:custom:mfa-otp token request.
type Challenge struct {
	MfaToken  string    `json:"mfa_token"`  // Opaque handle returned to the client (UUID)
	ClientID  string    `json:"client_id"`  // Client the challenge was issued to
	UserID    string    `json:"user_id"`    // Resource owner that passed the first factor
	OTPHash   string    `json:"otp_hash"`   // bcrypt hash of the one-time password
	Attempts  int       `json:"attempts"`   // Failed verification attempts so far
	CreatedAt time.Time `json:"created_at"` // When the challenge was issued
	ExpiresAt time.Time `json:"expires_at"` // When the challenge stops being accepted
}

// Expired reports whether the challenge can no longer be used at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
