package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-mfa-grant/internal/utils"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/token"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "1234"
	testIssuer = "http://localhost:8080"
)

func TestManager_CreateAccessToken_UserToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := token.New(token.NewHMACSigner(testSecret),
		token.WithIssuer(testIssuer),
		token.WithLifetimes(15*time.Minute, time.Hour),
		token.WithNowFunc(func() time.Time { return now }),
	)

	raw, expires, err := m.CreateAccessToken(token.AccessClaims{
		ClientID:  "thom",
		UserID:    "3",
		Scope:     "profile",
		GrantType: oauth2.MfaOtpGrant,
	})
	require.NoError(t, err)
	require.Equal(t, now.Add(15*time.Minute), expires)

	introspection, err := m.Introspection(raw)
	require.NoError(t, err)
	require.True(t, introspection.Active)
	require.Equal(t, "3", utils.Value(introspection.Sub))
	require.Equal(t, "thom", introspection.ClientID)
	require.Equal(t, "profile", introspection.Scope)
	require.Equal(t, string(oauth2.MfaOtpGrant), introspection.GrantType)
	require.Equal(t, testIssuer, utils.Value(introspection.Iss))
	require.Equal(t, expires.Unix(), utils.Value(introspection.Exp))
	require.NotEmpty(t, introspection.Jti)
}

func TestManager_CreateAccessToken_ClientToken(t *testing.T) {
	m := token.New(token.NewHMACSigner(testSecret))

	raw, _, err := m.CreateAccessToken(token.AccessClaims{ClientID: "thom", GrantType: "http://custom.com"})
	require.NoError(t, err)

	introspection, err := m.Introspection(raw)
	require.NoError(t, err)
	require.Equal(t, "thom", utils.Value(introspection.Sub))
	require.Empty(t, introspection.Scope)
}

func TestManager_Introspection_Expired(t *testing.T) {
	now := time.Now()
	m := token.New(token.NewHMACSigner(testSecret),
		token.WithLifetimes(time.Minute, time.Hour),
		token.WithNowFunc(func() time.Time { return now }),
	)

	raw, _, err := m.CreateAccessToken(token.AccessClaims{ClientID: "thom"})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	introspection, err := m.Introspection(raw)
	require.Error(t, err)
	require.False(t, introspection.Active)
}

func TestManager_Introspection_WrongKey(t *testing.T) {
	issuer := token.New(token.NewHMACSigner(testSecret))
	verifier := token.New(token.NewHMACSigner("another-secret"))

	raw, _, err := issuer.CreateAccessToken(token.AccessClaims{ClientID: "thom"})
	require.NoError(t, err)

	introspection, err := verifier.Introspection(raw)
	require.Error(t, err)
	require.False(t, introspection.Active)
}

func TestManager_Introspection_Empty(t *testing.T) {
	introspection, err := token.New(token.NewHMACSigner(testSecret)).Introspection("  ")
	require.NoError(t, err)
	require.False(t, introspection.Active)
}

func TestManager_CreateRefreshToken(t *testing.T) {
	now := time.Now()
	m := token.New(token.NewHMACSigner(testSecret),
		token.WithLifetimes(time.Minute, 24*time.Hour),
		token.WithNowFunc(func() time.Time { return now }),
	)

	first, expires, err := m.CreateRefreshToken()
	require.NoError(t, err)
	require.Len(t, first, 64)
	require.Equal(t, now.Add(24*time.Hour), expires)

	second, _, err := m.CreateRefreshToken()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestManager_Defaults(t *testing.T) {
	m := token.New(token.NewHMACSigner(testSecret))
	require.Equal(t, time.Hour, m.AccessTokenLifetime())
	require.Equal(t, 14*24*time.Hour, m.RefreshTokenLifetime())
}

func TestNewRandomHMACSigner(t *testing.T) {
	signer, err := token.NewRandomHMACSigner()
	require.NoError(t, err)

	m := token.New(signer)
	raw, _, err := m.CreateAccessToken(token.AccessClaims{ClientID: "thom"})
	require.NoError(t, err)

	introspection, err := m.Introspection(raw)
	require.NoError(t, err)
	require.True(t, introspection.Active)
}
