package hostmodel

import (
	"context"
	"strings"
	"time"

	"github.com/jrsteele09/go-mfa-grant/challenges"
	"github.com/jrsteele09/go-mfa-grant/clients"
	"github.com/jrsteele09/go-mfa-grant/grant"
	apperrors "github.com/jrsteele09/go-mfa-grant/internal/errors"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultMaxAttempts  = 5
)

var (
	_ grant.Model             = (*Model)(nil)
	_ grant.MfaOtpVerifier    = (*Model)(nil)
	_ grant.ScopeValidator    = (*Model)(nil)
	_ grant.RefreshTokenSaver = (*Model)(nil)
)

// Model is the reference host model: clients from a clients.Repo, MFA
// challenges from a challenges.Repo and issued tokens in a TTL cache.
type Model struct {
	clients      clients.Repo
	challenges   challenges.Repo
	tokens       *gocache.Cache
	challengeTTL time.Duration
	maxAttempts  int
	nowFunc      func() time.Time
}

type Option func(*Model)

func WithChallengeTTL(ttl time.Duration) Option {
	return func(m *Model) {
		m.challengeTTL = ttl
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(m *Model) {
		m.maxAttempts = attempts
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(m *Model) {
		m.nowFunc = now
	}
}

func New(clientRepo clients.Repo, challengeRepo challenges.Repo, options ...Option) *Model {
	m := &Model{
		clients:      clientRepo,
		challenges:   challengeRepo,
		tokens:       gocache.New(gocache.NoExpiration, 10*time.Minute),
		challengeTTL: DefaultChallengeTTL,
		maxAttempts:  DefaultMaxAttempts,
		nowFunc:      time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Model) GetClient(_ context.Context, clientID, clientSecret string) (*clients.Client, error) {
	client, err := m.clients.Get(clientID)
	if apperrors.Is(err, apperrors.ErrClientNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Model.GetClient] clients.Get")
	}
	if !client.CheckSecret(clientSecret) {
		return nil, nil
	}
	return client, nil
}

func (m *Model) GrantTypeAllowed(_ context.Context, clientID string, grantType oauth2.GrantType) (bool, error) {
	client, err := m.clients.Get(clientID)
	if apperrors.Is(err, apperrors.ErrClientNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "[Model.GrantTypeAllowed] clients.Get")
	}
	return client.AllowsGrant(grantType), nil
}

// ValidateScope grants the requested scopes when the client holds all of them.
func (m *Model) ValidateScope(_ context.Context, scope string, client *clients.Client, _ *oauthmodel.User) (string, bool, error) {
	if client == nil {
		return "", false, nil
	}
	if err := client.ValidateScopes(scope); err != nil {
		return "", false, nil
	}
	return strings.Join(strings.Fields(scope), " "), true, nil
}

func (m *Model) SaveAccessToken(_ context.Context, token *oauthmodel.AccessToken) error {
	return m.saveToken(accessTokenKey(token.Token), token, token.Expires)
}

func (m *Model) SaveRefreshToken(_ context.Context, token *oauthmodel.RefreshToken) error {
	return m.saveToken(refreshTokenKey(token.Token), token, token.Expires)
}

// AccessToken returns a saved access token that has not expired.
func (m *Model) AccessToken(token string) (*oauthmodel.AccessToken, bool) {
	v, ok := m.tokens.Get(accessTokenKey(token))
	if !ok {
		return nil, false
	}
	t, ok := v.(*oauthmodel.AccessToken)
	return t, ok
}

// RefreshToken returns a saved refresh token that has not expired.
func (m *Model) RefreshToken(token string) (*oauthmodel.RefreshToken, bool) {
	v, ok := m.tokens.Get(refreshTokenKey(token))
	if !ok {
		return nil, false
	}
	t, ok := v.(*oauthmodel.RefreshToken)
	return t, ok
}

func (m *Model) saveToken(key string, token any, expires time.Time) error {
	if key == "" {
		return errors.New("[Model.saveToken] empty token")
	}
	ttl := expires.Sub(m.nowFunc())
	if ttl <= 0 {
		return errors.Errorf("[Model.saveToken] token already expired at %s", expires.Format(time.RFC3339))
	}
	m.tokens.Set(key, token, ttl)
	return nil
}

func accessTokenKey(token string) string {
	if token == "" {
		return ""
	}
	return "access:" + token
}

func refreshTokenKey(token string) string {
	if token == "" {
		return ""
	}
	return "refresh:" + token
}
