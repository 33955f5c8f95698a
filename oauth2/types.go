package oauth2

import "regexp"

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	AuthorizationCodeGrant GrantType = "authorization_code"

	// ClientCredentialsGrant allows machine-to-machine authentication.
	ClientCredentialsGrant GrantType = "client_credentials"

	// RefreshTokenGrant exchanges a refresh token for new tokens.
	// Listing it in the allowed grants also turns on refresh token issuance.
	RefreshTokenGrant GrantType = "refresh_token"

	// PasswordGrant exchanges resource owner credentials for tokens.
	PasswordGrant GrantType = "password"

	// MfaOtpGrant completes a multi-factor login.
	// Used in: second step of a login, after the first factor issued an mfa_token
	// Token request includes: client_id, client_secret, mfa_token, otp
	// Returns: access_token (and refresh_token when refresh_token is an allowed grant)
	MfaOtpGrant GrantType = "urn:custom:mfa-otp"
)

var extensionGrantPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]+:`)

// IsExtensionGrant reports whether the grant type is an absolute URI, the form
// RFC 6749 section 4.5 requires for extension grants.
func IsExtensionGrant(grantType GrantType) bool {
	return extensionGrantPattern.MatchString(string(grantType))
}

// ParseGrantTypes converts raw grant type names, skipping blanks.
func ParseGrantTypes(names []string) []GrantType {
	grants := make([]GrantType, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		grants = append(grants, GrantType(n))
	}
	return grants
}
