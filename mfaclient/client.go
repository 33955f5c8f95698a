package mfaclient

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// GrantType is the extension grant exchanged by this client.
const GrantType = "urn:custom:mfa-otp"

const maxResponseBody = 1 << 20

// Client performs the urn:custom:mfa-otp exchange against a token endpoint.
// ClientID, ClientSecret, Endpoint.TokenURL and Endpoint.AuthStyle of the
// config are used; AuthStyleAutoDetect sends credentials in the header.
type Client struct {
	config  *oauth2.Config
	nowFunc func() time.Time
}

type Option func(*Client)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

func New(config *oauth2.Config, options ...Option) *Client {
	c := &Client{
		config:  config,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Exchange trades an mfa_token and the one-time password for a token.
// The HTTP client is taken from ctx under oauth2.HTTPClient when present.
// Error responses are returned as *oauth2.RetrieveError.
func (c *Client) Exchange(ctx context.Context, mfaToken, otp string, scopes ...string) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type": {GrantType},
		"mfa_token":  {mfaToken},
		"otp":        {otp},
	}
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}
	if c.config.Endpoint.AuthStyle == oauth2.AuthStyleInParams {
		form.Set("client_id", c.config.ClientID)
		if c.config.ClientSecret != "" {
			form.Set("client_secret", c.config.ClientSecret)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] NewRequest")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.config.Endpoint.AuthStyle != oauth2.AuthStyleInParams {
		req.SetBasicAuth(url.QueryEscape(c.config.ClientID), url.QueryEscape(c.config.ClientSecret))
	}

	resp, err := httpClient(ctx).Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] POST "+c.config.Endpoint.TokenURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, retrieveError(resp, body)
	}
	return c.parseToken(resp, body)
}

// HTTPClient returns a client that authorizes requests with tok.
func (c *Client) HTTPClient(ctx context.Context, tok *oauth2.Token) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))
}

type tokenJSON struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (c *Client) parseToken(resp *http.Response, body []byte) (*oauth2.Token, error) {
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "application/json" {
		return nil, &oauth2.RetrieveError{Response: resp, Body: body, ErrorDescription: "unexpected content type " + mediaType}
	}

	var tj tokenJSON
	if err := json.Unmarshal(body, &tj); err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] decode token")
	}
	if tj.AccessToken == "" {
		return nil, errors.New("[Client.Exchange] server response missing access_token")
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "[Client.Exchange] decode token fields")
	}

	tok := &oauth2.Token{
		AccessToken:  tj.AccessToken,
		TokenType:    tj.TokenType,
		RefreshToken: tj.RefreshToken,
	}
	if tj.ExpiresIn > 0 {
		tok.Expiry = c.nowFunc().Add(time.Duration(tj.ExpiresIn) * time.Second)
	}
	return tok.WithExtra(raw), nil
}

func retrieveError(resp *http.Response, body []byte) *oauth2.RetrieveError {
	retrieveErr := &oauth2.RetrieveError{Response: resp, Body: body}
	var e struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorURI         string `json:"error_uri"`
	}
	if json.Unmarshal(body, &e) == nil {
		retrieveErr.ErrorCode = e.Error
		retrieveErr.ErrorDescription = e.ErrorDescription
		retrieveErr.ErrorURI = e.ErrorURI
	}
	return retrieveErr
}

func httpClient(ctx context.Context) *http.Client {
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && c != nil {
		return c
	}
	return http.DefaultClient
}
