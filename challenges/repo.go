package challenges

import (
	"context"
	"time"
)

// Repo defines the storage operations for MFA challenges.
// Challenges are short-lived and every backend drops them after their ttl.
// IncrAttempts and Consume are atomic so concurrent token requests cannot
// share an attempt or redeem the same challenge twice.
type Repo interface {
	// Upsert creates or replaces a challenge, keeping it for ttl
	Upsert(ctx context.Context, challenge *Challenge, ttl time.Duration) error

	// Get retrieves a challenge by its mfa_token
	Get(ctx context.Context, mfaToken string) (*Challenge, error)

	// IncrAttempts records one more verification attempt and returns the new count
	IncrAttempts(ctx context.Context, mfaToken string) (int, error)

	// Consume removes a challenge and returns it. Only one caller gets a given challenge.
	Consume(ctx context.Context, mfaToken string) (*Challenge, error)

	// Delete removes a challenge by its mfa_token
	Delete(ctx context.Context, mfaToken string) error
}
