package config

import (
	"time"

	"github.com/jrsteele09/go-mfa-grant/oauth2"
)

const (
	grantsVar               = "GRANTS"
	accessTokenLifetimeVar  = "ACCESS_TOKEN_LIFETIME"
	refreshTokenLifetimeVar = "REFRESH_TOKEN_LIFETIME"
)

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetGrants returns the grant types the token endpoint accepts.
func (OAuth) GetGrants() []oauth2.GrantType {
	return oauth2.ParseGrantTypes(GetEnvList(grantsVar, []string{string(oauth2.MfaOtpGrant)}))
}

func (OAuth) GetAccessTokenLifetime() time.Duration {
	return GetEnvDuration(accessTokenLifetimeVar, time.Hour)
}

func (OAuth) GetRefreshTokenLifetime() time.Duration {
	return GetEnvDuration(refreshTokenLifetimeVar, 14*24*time.Hour) // 14 days
}
