package grant

import (
	"context"

	"github.com/jrsteele09/go-mfa-grant/clients"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
)

// Model is the data access the host application supplies to the token endpoint.
// Returning an *oauth2.Error from any method reports that error to the caller
// unchanged; any other error is reported as server_error.
type Model interface {
	// GetClient returns the client for the credentials, or nil when they are invalid.
	GetClient(ctx context.Context, clientID, clientSecret string) (*clients.Client, error)

	// GrantTypeAllowed reports whether the client may use the grant type.
	GrantTypeAllowed(ctx context.Context, clientID string, grantType oauth2.GrantType) (bool, error)

	// SaveAccessToken persists an issued access token.
	SaveAccessToken(ctx context.Context, token *oauthmodel.AccessToken) error
}

// MfaOtpVerifier verifies the otp / mfa_token pair of a urn:custom:mfa-otp request.
type MfaOtpVerifier interface {
	PerformMfaOtp(ctx context.Context, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error)
}

// MfaOtpGranter is an alternative name for the MFA verification hook.
// It is consulted when the model does not implement MfaOtpVerifier.
type MfaOtpGranter interface {
	UseMfaOtpGrant(ctx context.Context, grantType oauth2.GrantType, req *oauthmodel.TokenRequest) (bool, *oauthmodel.User, error)
}

// ExtendedGranter handles extension grant types without a dedicated handler.
// supported=false means the model does not know the grant type.
type ExtendedGranter interface {
	ExtendedGrant(ctx context.Context, grantType oauth2.GrantType, req *oauthmodel.TokenRequest) (supported bool, user *oauthmodel.User, err error)
}

// ScopeValidator narrows or rejects the requested scope.
// It returns the scope to grant, and valid=false to reject the request.
type ScopeValidator interface {
	ValidateScope(ctx context.Context, scope string, client *clients.Client, user *oauthmodel.User) (granted string, valid bool, err error)
}

// TokenKind distinguishes the tokens a TokenGenerator is asked for.
type TokenKind string

const (
	AccessTokenKind  TokenKind = "accessToken"
	RefreshTokenKind TokenKind = "refreshToken"
)

// TokenGenerator replaces the default token format.
// Returning an empty token falls back to the default.
type TokenGenerator interface {
	GenerateToken(ctx context.Context, kind TokenKind, req *oauthmodel.TokenRequest) (string, error)
}

// RefreshTokenSaver persists refresh tokens. Refresh tokens are only issued
// to models implementing it.
type RefreshTokenSaver interface {
	SaveRefreshToken(ctx context.Context, token *oauthmodel.RefreshToken) error
}
