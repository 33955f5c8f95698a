package redisrepo_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-mfa-grant/challenges"
	"github.com/jrsteele09/go-mfa-grant/challenges/redisrepo"
	apperrors "github.com/jrsteele09/go-mfa-grant/internal/errors"
	"github.com/stretchr/testify/require"
)

// Runs against a live Redis when REDIS_ADDR is set, e.g. REDIS_ADDR=localhost:6379.
func TestRedisChallengeRepo(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb, err := redisrepo.Dial(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	prefix := "test:" + uuid.NewString()
	repo := redisrepo.NewRedisChallengeRepo(rdb, prefix)
	created := time.Now().UTC().Truncate(time.Second)
	challenge := &challenges.Challenge{
		MfaToken:  uuid.NewString(),
		ClientID:  "thom",
		UserID:    "3",
		OTPHash:   "hash",
		CreatedAt: created,
		ExpiresAt: created.Add(time.Minute),
	}

	_, err = repo.Get(ctx, challenge.MfaToken)
	require.ErrorIs(t, err, apperrors.ErrChallengeNotFound)

	require.NoError(t, repo.Upsert(ctx, challenge, time.Minute))
	got, err := repo.Get(ctx, challenge.MfaToken)
	require.NoError(t, err)
	require.Equal(t, challenge.UserID, got.UserID)
	require.True(t, challenge.ExpiresAt.Equal(got.ExpiresAt))

	ttl, err := rdb.TTL(ctx, prefix+":"+challenge.MfaToken).Result()
	require.NoError(t, err)
	require.Positive(t, ttl)
	require.LessOrEqual(t, ttl, time.Minute)

	attempts, err := repo.IncrAttempts(ctx, challenge.MfaToken)
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
	got, err = repo.Get(ctx, challenge.MfaToken)
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempts)

	consumed, err := repo.Consume(ctx, challenge.MfaToken)
	require.NoError(t, err)
	require.Equal(t, challenge.UserID, consumed.UserID)
	_, err = repo.Consume(ctx, challenge.MfaToken)
	require.ErrorIs(t, err, apperrors.ErrChallengeNotFound)

	// A consumed challenge is not recreated by a late attempt.
	_, err = repo.IncrAttempts(ctx, challenge.MfaToken)
	require.ErrorIs(t, err, apperrors.ErrChallengeNotFound)
	exists, err := rdb.Exists(ctx, prefix+":"+challenge.MfaToken).Result()
	require.NoError(t, err)
	require.Zero(t, exists)

	require.NoError(t, repo.Upsert(ctx, challenge, time.Minute))
	require.NoError(t, repo.Delete(ctx, challenge.MfaToken))
	_, err = repo.Get(ctx, challenge.MfaToken)
	require.ErrorIs(t, err, apperrors.ErrChallengeNotFound)
}

func TestRedisChallengeRepo_RejectsExpiredTTL(t *testing.T) {
	repo := redisrepo.NewRedisChallengeRepo(nil, "")
	err := repo.Upsert(context.Background(), &challenges.Challenge{MfaToken: "abc"}, -time.Second)
	require.ErrorIs(t, err, apperrors.ErrChallengeExpired)
}
