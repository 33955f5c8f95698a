package grant_test

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-mfa-grant/clients"
	"github.com/jrsteele09/go-mfa-grant/grant"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
)

type verifyFunc func(ctx context.Context, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error)

// baseModel implements only the required Model methods and records every call.
type baseModel struct {
	client  *clients.Client
	allowed bool

	lock  sync.Mutex
	calls []string
	saved []*oauthmodel.AccessToken
}

var _ grant.Model = (*baseModel)(nil)

func newBaseModel() *baseModel {
	return &baseModel{
		client:  &clients.Client{ID: testClientID},
		allowed: true,
	}
}

func (m *baseModel) record(call string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.calls = append(m.calls, call)
}

func (m *baseModel) Calls() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *baseModel) GetClient(_ context.Context, clientID, clientSecret string) (*clients.Client, error) {
	m.record("GetClient")
	if m.client == nil || clientID != m.client.ID || clientSecret != testClientSecret {
		return nil, nil
	}
	return m.client, nil
}

func (m *baseModel) GrantTypeAllowed(_ context.Context, _ string, _ oauth2.GrantType) (bool, error) {
	m.record("GrantTypeAllowed")
	return m.allowed, nil
}

func (m *baseModel) SaveAccessToken(_ context.Context, token *oauthmodel.AccessToken) error {
	m.record("SaveAccessToken")
	m.lock.Lock()
	defer m.lock.Unlock()
	m.saved = append(m.saved, token)
	return nil
}

// mfaModel adds PerformMfaOtp.
type mfaModel struct {
	*baseModel
	perform verifyFunc
}

var _ grant.MfaOtpVerifier = (*mfaModel)(nil)

func newMfaModel(perform verifyFunc) *mfaModel {
	return &mfaModel{baseModel: newBaseModel(), perform: perform}
}

func (m *mfaModel) PerformMfaOtp(ctx context.Context, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error) {
	m.record("PerformMfaOtp")
	return m.perform(ctx, req)
}

// aliasModel only has the UseMfaOtpGrant name for the hook.
type aliasModel struct {
	*baseModel
	use verifyFunc
}

var _ grant.MfaOtpGranter = (*aliasModel)(nil)

func (m *aliasModel) UseMfaOtpGrant(ctx context.Context, _ oauth2.GrantType, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error) {
	m.record("UseMfaOtpGrant")
	return m.use(ctx, req)
}

// bothModel has both hook names; PerformMfaOtp must win.
type bothModel struct {
	*mfaModel
	use verifyFunc
}

func (m *bothModel) UseMfaOtpGrant(ctx context.Context, _ oauth2.GrantType, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error) {
	m.record("UseMfaOtpGrant")
	return m.use(ctx, req)
}

// extendedModel only implements the generic extension hook.
type extendedModel struct {
	*baseModel
	extended func(ctx context.Context, grantType oauth2.GrantType, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error)
}

var _ grant.ExtendedGranter = (*extendedModel)(nil)

func (m *extendedModel) ExtendedGrant(ctx context.Context, grantType oauth2.GrantType, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error) {
	m.record("ExtendedGrant")
	return m.extended(ctx, grantType, req)
}

// scopedModel adds ValidateScope.
type scopedModel struct {
	*mfaModel
	validate func(scope string) (string, bool, error)
}

var _ grant.ScopeValidator = (*scopedModel)(nil)

func (m *scopedModel) ValidateScope(_ context.Context, scope string, _ *clients.Client, _ *oauthmodel.User) (string, bool, error) {
	m.record("ValidateScope")
	return m.validate(scope)
}

// refreshModel stores refresh tokens.
type refreshModel struct {
	*mfaModel
	refreshTokens []*oauthmodel.RefreshToken
}

var _ grant.RefreshTokenSaver = (*refreshModel)(nil)

func (m *refreshModel) SaveRefreshToken(_ context.Context, token *oauthmodel.RefreshToken) error {
	m.record("SaveRefreshToken")
	m.refreshTokens = append(m.refreshTokens, token)
	return nil
}

// generatingModel supplies its own token format.
type generatingModel struct {
	*refreshModel
	generate func(kind grant.TokenKind) (string, error)
}

var _ grant.TokenGenerator = (*generatingModel)(nil)

func (m *generatingModel) GenerateToken(_ context.Context, kind grant.TokenKind, _ *oauthmodel.TokenRequest) (string, error) {
	m.record("GenerateToken")
	return m.generate(kind)
}

func acceptOTP(ctx context.Context, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error) {
	return true, &oauthmodel.User{ID: "3"}, nil
}
