package grant

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/go-mfa-grant/internal/utils"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
	"github.com/jrsteele09/go-mfa-grant/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Dispatcher runs a token request through client authentication, the grant
// handler selected by grant_type, scope validation and token issuance.
// It keeps no per-request state and is safe for concurrent use.
type Dispatcher struct {
	model    Model
	tokens   *token.Manager
	grants   map[oauth2.GrantType]struct{}
	handlers map[oauth2.GrantType]Handler
	nowTime  func() time.Time
}

// DispatcherOption defines a function type to modify the Dispatcher instance.
type DispatcherOption func(*Dispatcher)

// WithHandler registers the handler for a grant type, replacing any default.
func WithHandler(grantType oauth2.GrantType, handler Handler) DispatcherOption {
	return func(d *Dispatcher) {
		d.handlers[grantType] = handler
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.nowTime = nowFunc
	}
}

// NewDispatcher creates a dispatcher accepting the listed grant types.
// The urn:custom:mfa-otp handler is registered by default.
func NewDispatcher(model Model, tokens *token.Manager, grants []oauth2.GrantType, options ...DispatcherOption) (*Dispatcher, error) {
	if model == nil {
		return nil, errors.New("[NewDispatcher] model is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewDispatcher] token manager is required")
	}
	if len(grants) == 0 {
		return nil, errors.New("[NewDispatcher] at least one grant type is required")
	}

	d := &Dispatcher{
		model:    model,
		tokens:   tokens,
		grants:   make(map[oauth2.GrantType]struct{}, len(grants)),
		handlers: map[oauth2.GrantType]Handler{oauth2.MfaOtpGrant: NewMfaOtpHandler(model)},
		nowTime:  time.Now,
	}
	for _, g := range grants {
		d.grants[g] = struct{}{}
	}

	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// Allows reports whether the grant type is enabled.
func (d *Dispatcher) Allows(grantType oauth2.GrantType) bool {
	_, ok := d.grants[grantType]
	return ok
}

// Token handles the OAuth 2.0 token request. Every error it returns is an *oauth2.Error.
func (d *Dispatcher) Token(ctx context.Context, req *oauthmodel.TokenRequest) (*oauth2.TokenResponse, error) {
	resp, err := d.token(ctx, req)
	if err != nil {
		oauthErr := asOAuthError(err)
		logRejection(req, oauthErr)
		return nil, oauthErr
	}
	return resp, nil
}

func (d *Dispatcher) token(ctx context.Context, req *oauthmodel.TokenRequest) (*oauth2.TokenResponse, error) {
	if req.ClientID == "" {
		return nil, d.invalidClient(req, oauthmodel.MsgMissingClientID)
	}

	handler := d.handlerFor(req.GrantType)
	if handler == nil {
		return nil, oauth2.NewError(oauth2.InvalidRequest, oauthmodel.MsgInvalidGrantTypeParam)
	}
	if err := handler.ValidateGrant(req); err != nil {
		return nil, err
	}

	client, err := d.model.GetClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, errors.Wrap(asOAuthError(err), "[Dispatcher.Token] GetClient")
	}
	if client == nil {
		return nil, d.invalidClient(req, oauthmodel.MsgInvalidClient)
	}
	req.Client = client

	allowed, err := d.model.GrantTypeAllowed(ctx, req.ClientID, req.GrantType)
	if err != nil {
		return nil, errors.Wrap(asOAuthError(err), "[Dispatcher.Token] GrantTypeAllowed")
	}
	if !allowed {
		return nil, oauth2.NewError(oauth2.UnauthorizedClient, oauthmodel.MsgUnauthorisedGrant)
	}

	user, err := handler.HandleGrant(ctx, req)
	if err != nil {
		return nil, err
	}
	req.User = user

	scope, err := d.validateScope(ctx, req)
	if err != nil {
		return nil, err
	}

	return d.issue(ctx, req, scope)
}

// handlerFor returns the handler for an enabled grant type. Enabled
// extension grants without a registered handler go to the model's ExtendedGrant.
func (d *Dispatcher) handlerFor(grantType oauth2.GrantType) Handler {
	if grantType == "" || !d.Allows(grantType) {
		return nil
	}
	if h, ok := d.handlers[grantType]; ok {
		return h
	}
	if oauth2.IsExtensionGrant(grantType) {
		return NewExtendedHandler(d.model)
	}
	return nil
}

func (d *Dispatcher) invalidClient(req *oauthmodel.TokenRequest, description string) *oauth2.Error {
	e := oauth2.NewError(oauth2.InvalidClient, description)
	if req.BasicAuth {
		return e.WithStatus(http.StatusUnauthorized)
	}
	return e
}

func (d *Dispatcher) validateScope(ctx context.Context, req *oauthmodel.TokenRequest) (string, error) {
	validator, ok := d.model.(ScopeValidator)
	if !ok {
		return req.Scope, nil
	}
	granted, valid, err := validator.ValidateScope(ctx, req.Scope, req.Client, req.User)
	if err != nil {
		return "", errors.Wrap(asOAuthError(err), "[Dispatcher.Token] ValidateScope")
	}
	if !valid {
		return "", oauth2.NewError(oauth2.InvalidScope, oauthmodel.MsgInvalidScope)
	}
	return granted, nil
}

func (d *Dispatcher) issue(ctx context.Context, req *oauthmodel.TokenRequest, scope string) (*oauth2.TokenResponse, error) {
	accessToken, expires, err := d.accessToken(ctx, req, scope)
	if err != nil {
		return nil, err
	}

	if err := d.model.SaveAccessToken(ctx, &oauthmodel.AccessToken{
		Token:     accessToken,
		ClientID:  req.ClientID,
		Expires:   expires,
		User:      req.User,
		Scope:     scope,
		GrantType: req.GrantType,
	}); err != nil {
		return nil, errors.Wrap(asOAuthError(err), "[Dispatcher.Token] SaveAccessToken")
	}

	resp := &oauth2.TokenResponse{
		AccessToken: utils.Ptr(accessToken),
		TokenType:   "bearer",
		ExpiresIn:   int(expires.Sub(d.nowTime()).Round(time.Second).Seconds()),
		Scope:       scope,
	}

	refreshToken, err := d.refreshToken(ctx, req, scope)
	if err != nil {
		return nil, err
	}
	if refreshToken != "" {
		resp.RefreshToken = utils.Ptr(refreshToken)
	}
	return resp, nil
}

func (d *Dispatcher) accessToken(ctx context.Context, req *oauthmodel.TokenRequest, scope string) (string, time.Time, error) {
	expires := d.nowTime().Add(d.tokens.AccessTokenLifetime())

	generated, err := d.generate(ctx, AccessTokenKind, req)
	if err != nil {
		return "", time.Time{}, err
	}
	if generated != "" {
		return generated, expires, nil
	}

	claims := token.AccessClaims{ClientID: req.ClientID, Scope: scope, GrantType: req.GrantType}
	if req.User != nil {
		claims.UserID = req.User.ID
	}
	signed, expires, err := d.tokens.CreateAccessToken(claims)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "[Dispatcher.Token] CreateAccessToken")
	}
	return signed, expires, nil
}

func (d *Dispatcher) refreshToken(ctx context.Context, req *oauthmodel.TokenRequest, scope string) (string, error) {
	saver, ok := d.model.(RefreshTokenSaver)
	if !ok || !d.Allows(oauth2.RefreshTokenGrant) {
		return "", nil
	}

	refreshToken, expires, err := d.tokens.CreateRefreshToken()
	if err != nil {
		return "", errors.Wrap(err, "[Dispatcher.Token] CreateRefreshToken")
	}
	generated, err := d.generate(ctx, RefreshTokenKind, req)
	if err != nil {
		return "", err
	}
	if generated != "" {
		refreshToken = generated
	}

	if err := saver.SaveRefreshToken(ctx, &oauthmodel.RefreshToken{
		Token:    refreshToken,
		ClientID: req.ClientID,
		Expires:  expires,
		User:     req.User,
		Scope:    scope,
	}); err != nil {
		return "", errors.Wrap(asOAuthError(err), "[Dispatcher.Token] SaveRefreshToken")
	}
	return refreshToken, nil
}

func (d *Dispatcher) generate(ctx context.Context, kind TokenKind, req *oauthmodel.TokenRequest) (string, error) {
	generator, ok := d.model.(TokenGenerator)
	if !ok {
		return "", nil
	}
	generated, err := generator.GenerateToken(ctx, kind, req)
	if err != nil {
		return "", errors.Wrapf(asOAuthError(err), "[Dispatcher.Token] GenerateToken %s", kind)
	}
	return generated, nil
}

func logRejection(req *oauthmodel.TokenRequest, err *oauth2.Error) {
	event := log.Warn()
	if err.Code == oauth2.ServerError {
		event = log.Error().Err(err.Unwrap())
	}
	event.
		Str("grant_type", string(req.GrantType)).
		Str("client_id", req.ClientID).
		Str("error", string(err.Code)).
		Int("status", err.Status).
		Msg("token request rejected")
}
