package config

import "time"

const (
	challengeTTLVar = "MFA_CHALLENGE_TTL"
	maxAttemptsVar  = "MFA_MAX_ATTEMPTS"
)

type Security struct{}

var _ SecurityConfig = Security{}

// GetChallengeTTL returns how long an mfa_token stays usable.
func (Security) GetChallengeTTL() time.Duration {
	return GetEnvDuration(challengeTTLVar, 5*time.Minute)
}

// GetMaxOTPAttempts returns the failed attempts after which a challenge is dropped.
func (Security) GetMaxOTPAttempts() int {
	if n := GetEnvInt(maxAttemptsVar, 5); n > 0 {
		return n
	}
	return 5
}
