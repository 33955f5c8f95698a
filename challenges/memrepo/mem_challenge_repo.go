package memrepo

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-mfa-grant/challenges"
	apperrors "github.com/jrsteele09/go-mfa-grant/internal/errors"
	gocache "github.com/patrickmn/go-cache"
)

var _ challenges.Repo = (*MemChallengeRepo)(nil)

// MemChallengeRepo keeps challenges in process memory. Challenges are lost on restart.
type MemChallengeRepo struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

func NewMemChallengeRepo(cleanupInterval time.Duration) *MemChallengeRepo {
	return &MemChallengeRepo{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (r *MemChallengeRepo) Upsert(_ context.Context, challenge *challenges.Challenge, ttl time.Duration) error {
	if challenge == nil || challenge.MfaToken == "" {
		return apperrors.ErrChallengeNotFound
	}
	if ttl <= 0 {
		return apperrors.ErrChallengeExpired
	}
	stored := *challenge

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(challenge.MfaToken, &stored, ttl)
	return nil
}

func (r *MemChallengeRepo) Get(_ context.Context, mfaToken string) (*challenges.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.lookup(mfaToken)
	if !ok {
		return nil, apperrors.ErrChallengeNotFound
	}
	c := *stored
	return &c, nil
}

func (r *MemChallengeRepo) IncrAttempts(_ context.Context, mfaToken string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.lookup(mfaToken)
	if !ok {
		return 0, apperrors.ErrChallengeNotFound
	}
	// Stored values are never handed out, so updating in place keeps the ttl.
	stored.Attempts++
	return stored.Attempts, nil
}

func (r *MemChallengeRepo) Consume(_ context.Context, mfaToken string) (*challenges.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.lookup(mfaToken)
	if !ok {
		return nil, apperrors.ErrChallengeNotFound
	}
	r.cache.Delete(mfaToken)
	c := *stored
	return &c, nil
}

func (r *MemChallengeRepo) Delete(_ context.Context, mfaToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(mfaToken)
	return nil
}

// lookup must be called with mu held.
func (r *MemChallengeRepo) lookup(mfaToken string) (*challenges.Challenge, bool) {
	v, ok := r.cache.Get(mfaToken)
	if !ok {
		return nil, false
	}
	stored, ok := v.(*challenges.Challenge)
	return stored, ok
}
