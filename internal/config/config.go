package config

import (
	"time"

	"github.com/jrsteele09/go-mfa-grant/oauth2"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDev() bool
	GetLogLevel() string
	GetBaseURL() string
	GetClientsFile() string
	GetTokenSigningKey() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type OAuthConfig interface {
	GetGrants() []oauth2.GrantType
	GetAccessTokenLifetime() time.Duration
	GetRefreshTokenLifetime() time.Duration
}

type SecurityConfig interface {
	GetChallengeTTL() time.Duration
	GetMaxOTPAttempts() int
}

type StoreConfig interface {
	GetMfaStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Store
}

func New() Config {
	return mainConfig{}
}
