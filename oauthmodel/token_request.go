package oauthmodel

import (
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-mfa-grant/clients"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
)

const maxTokenRequestBody = 64 << 10

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the request body sent to the /oauth/token endpoint.
type TokenRequest struct {
	// GrantType selects the grant handler.
	// Example: "urn:custom:mfa-otp"
	GrantType oauth2.GrantType

	// ClientID identifies the OAuth2 client making the request.
	// Taken from HTTP Basic auth when present, otherwise from the form.
	ClientID string

	// ClientSecret is the secret credential for confidential clients.
	// Security: Never log or expose this value
	ClientSecret string

	// BasicAuth is true when the client authenticated with the Authorization header.
	BasicAuth bool

	// Scope is the space separated scope requested by the client.
	Scope string

	// OTP is the one-time password of the second factor.
	// Required: Yes (only for urn:custom:mfa-otp)
	// Security: Never log or expose this value
	OTP string

	// MfaToken identifies the pending MFA challenge issued after the first factor.
	// Required: Yes (only for urn:custom:mfa-otp)
	MfaToken string

	// Form holds every body field, including ones no built-in grant reads.
	Form url.Values

	// Client is the client resolved by the host model.
	Client *clients.Client

	// User is the resource owner resolved by the grant handler.
	User *User
}

// Get returns a body field of the request.
func (r *TokenRequest) Get(name string) string {
	return r.Form.Get(name)
}

// User is the resource owner a grant was issued for.
type User struct {
	ID     string
	Claims map[string]any
}

// AccessToken is handed to the host model for persistence.
type AccessToken struct {
	Token     string
	ClientID  string
	Expires   time.Time
	User      *User
	Scope     string
	GrantType oauth2.GrantType
}

// RefreshToken is handed to the host model for persistence.
type RefreshToken struct {
	Token    string
	ClientID string
	Expires  time.Time
	User     *User
	Scope    string
}

// ParseTokenRequest extracts a token request from a form encoded POST.
func ParseTokenRequest(w http.ResponseWriter, r *http.Request) (*TokenRequest, error) {
	if r.Method != http.MethodPost || !isFormEncoded(r.Header.Get("Content-Type")) {
		return nil, oauth2.NewError(oauth2.InvalidRequest, MsgMethodNotAllowed)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTokenRequestBody)
	if err := r.ParseForm(); err != nil {
		return nil, oauth2.NewError(oauth2.InvalidRequest, MsgMalformedBody).WithCause(err)
	}
	form := r.PostForm

	req := &TokenRequest{
		GrantType: oauth2.GrantType(strings.TrimSpace(form.Get("grant_type"))),
		Scope:     strings.TrimSpace(form.Get("scope")),
		OTP:       strings.TrimSpace(form.Get("otp")),
		MfaToken:  strings.TrimSpace(form.Get("mfa_token")),
		Form:      form,
	}

	if id, secret, ok := r.BasicAuth(); ok {
		req.ClientID = unescapeCredential(id)
		req.ClientSecret = unescapeCredential(secret)
		req.BasicAuth = true
	} else {
		req.ClientID = strings.TrimSpace(form.Get("client_id"))
		req.ClientSecret = form.Get("client_secret")
	}
	return req, nil
}

// unescapeCredential reverses the form encoding RFC 6749 section 2.3.1
// applies to Basic auth credentials.
func unescapeCredential(v string) string {
	if u, err := url.QueryUnescape(v); err == nil {
		return u
	}
	return v
}

func isFormEncoded(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}
