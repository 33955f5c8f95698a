package config

import "strings"

const (
	MfaStoreMemory = "memory"
	MfaStoreRedis  = "redis"
)

type Store struct{}

var _ StoreConfig = Store{}

// GetMfaStore returns the challenge store backend, memory or redis.
func (Store) GetMfaStore() string {
	return strings.ToLower(GetEnv("MFA_STORE", MfaStoreMemory))
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}
