package redisrepo

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jrsteele09/go-mfa-grant/challenges"
	apperrors "github.com/jrsteele09/go-mfa-grant/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "mfa:challenge"

// Each challenge is a hash: the JSON record plus a counter HINCRBY can update.
const (
	fieldData     = "data"
	fieldAttempts = "attempts"
)

// incrAttempts bumps the counter only while the challenge exists, so a
// consumed or expired challenge is not recreated. It returns -1 when missing.
var incrAttempts = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)
`)

var _ challenges.Repo = (*RedisChallengeRepo)(nil)

// RedisChallengeRepo stores challenges in Redis hashes with a TTL so several
// token endpoint instances can share them.
type RedisChallengeRepo struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisChallengeRepo(client redis.UniversalClient, prefix string) *RedisChallengeRepo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisChallengeRepo{
		client: client,
		prefix: prefix,
	}
}

// Dial connects to Redis and checks the connection with a PING.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "[redisrepo.Dial] ping %s", addr)
	}
	return rdb, nil
}

func (r *RedisChallengeRepo) key(mfaToken string) string {
	return r.prefix + ":" + mfaToken
}

func (r *RedisChallengeRepo) Upsert(ctx context.Context, challenge *challenges.Challenge, ttl time.Duration) error {
	if challenge == nil || challenge.MfaToken == "" {
		return apperrors.ErrChallengeNotFound
	}
	if ttl <= 0 {
		return apperrors.ErrChallengeExpired
	}

	data, err := json.Marshal(challenge)
	if err != nil {
		return errors.Wrap(err, "[RedisChallengeRepo.Upsert] json.Marshal")
	}

	key := r.key(challenge.MfaToken)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldData, data, fieldAttempts, challenge.Attempts)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "[RedisChallengeRepo.Upsert] MULTI")
	}
	return nil
}

func (r *RedisChallengeRepo) Get(ctx context.Context, mfaToken string) (*challenges.Challenge, error) {
	values, err := r.client.HGetAll(ctx, r.key(mfaToken)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "[RedisChallengeRepo.Get] HGETALL")
	}
	return decode(values)
}

func (r *RedisChallengeRepo) IncrAttempts(ctx context.Context, mfaToken string) (int, error) {
	attempts, err := incrAttempts.Run(ctx, r.client, []string{r.key(mfaToken)}, fieldAttempts).Int()
	if err != nil {
		return 0, errors.Wrap(err, "[RedisChallengeRepo.IncrAttempts] EVALSHA")
	}
	if attempts < 0 {
		return 0, apperrors.ErrChallengeNotFound
	}
	return attempts, nil
}

func (r *RedisChallengeRepo) Consume(ctx context.Context, mfaToken string) (*challenges.Challenge, error) {
	key := r.key(mfaToken)

	var values *redis.MapStringStringCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		values = pipe.HGetAll(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[RedisChallengeRepo.Consume] MULTI")
	}
	return decode(values.Val())
}

func (r *RedisChallengeRepo) Delete(ctx context.Context, mfaToken string) error {
	if err := r.client.Del(ctx, r.key(mfaToken)).Err(); err != nil {
		return errors.Wrap(err, "[RedisChallengeRepo.Delete] DEL")
	}
	return nil
}

func decode(values map[string]string) (*challenges.Challenge, error) {
	data, ok := values[fieldData]
	if !ok {
		return nil, apperrors.ErrChallengeNotFound
	}

	var challenge challenges.Challenge
	if err := json.Unmarshal([]byte(data), &challenge); err != nil {
		return nil, errors.Wrap(err, "[RedisChallengeRepo] json.Unmarshal")
	}
	attempts, err := strconv.Atoi(values[fieldAttempts])
	if err != nil {
		return nil, errors.Wrap(err, "[RedisChallengeRepo] attempts")
	}
	challenge.Attempts = attempts
	return &challenge, nil
}
