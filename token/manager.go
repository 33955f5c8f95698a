package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/pkg/errors"
)

// AccessClaims describes the grant an access token is issued for.
type AccessClaims struct {
	ClientID  string
	UserID    string // Empty for client-only grants
	Scope     string
	GrantType oauth2.GrantType
}

// TokenIntrospection represents the metadata information of an access token.
// The 'active' field indicates the state of the token - if it's false, other fields may not be populated.
type TokenIntrospection struct {
	Active    bool    `json:"active"`               // True or false - Is the token valid
	ClientID  string  `json:"client_id,omitempty"`  // Client the token was issued to
	Scope     string  `json:"scope,omitempty"`      // Granted scope
	GrantType string  `json:"grant_type,omitempty"` // Grant that produced the token
	Exp       *int64  `json:"exp,omitempty"`        // Expiration
	Iat       *int64  `json:"iat,omitempty"`        // Issued at time
	Iss       *string `json:"iss,omitempty"`        // Issuer of the token
	Sub       *string `json:"sub,omitempty"`        // User ID, or client ID for client-only tokens
	Jti       string  `json:"jti,omitempty"`        // Unique token ID
}

type Manager struct {
	signer               Signer
	issuer               string
	accessTokenLifetime  time.Duration
	refreshTokenLifetime time.Duration
	refreshTokenLength   int
	nowFunc              func() time.Time
}

type ManagerOption func(*Manager)

func WithLifetimes(accessTokenLifetime, refreshTokenLifetime time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenLifetime = accessTokenLifetime
		m.refreshTokenLifetime = refreshTokenLifetime
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:             signer,
		refreshTokenLength: 32, // 256 bits
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenLifetime == 0 {
		m.accessTokenLifetime = time.Hour
	}
	if m.refreshTokenLifetime == 0 {
		m.refreshTokenLifetime = 14 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

func (m *Manager) AccessTokenLifetime() time.Duration {
	return m.accessTokenLifetime
}

func (m *Manager) RefreshTokenLifetime() time.Duration {
	return m.refreshTokenLifetime
}

// CreateAccessToken signs a JWT access token and returns it with its expiry.
func (m *Manager) CreateAccessToken(c AccessClaims) (string, time.Time, error) {
	now := m.nowFunc()
	expires := now.Add(m.accessTokenLifetime)

	claims := jwt.MapClaims{
		"iss":        m.issuer,
		"sub":        c.ClientID, // The subject, the client ID unless a user was resolved
		"aud":        c.ClientID,
		"client_id":  c.ClientID,
		"grant_type": string(c.GrantType),
		"iat":        now.Unix(),
		"exp":        expires.Unix(),
		"jti":        uuid.New().String(), // Unique token ID
	}
	if c.UserID != "" {
		claims["sub"] = c.UserID
	}
	if c.Scope != "" {
		claims["scope"] = c.Scope
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "[Manager.CreateAccessToken] Sign")
	}
	return signed, expires, nil
}

// CreateRefreshToken returns an opaque random refresh token and its expiry.
func (m *Manager) CreateRefreshToken() (string, time.Time, error) {
	tokenBytes := make([]byte, m.refreshTokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", time.Time{}, errors.Wrap(err, "[Manager.CreateRefreshToken] rand.Read")
	}
	return hex.EncodeToString(tokenBytes), m.nowFunc().Add(m.refreshTokenLifetime), nil
}

func (m *Manager) Introspection(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	token, err := jwt.Parse(rawToken, m.signer.GetVerificationKey,
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return &TokenIntrospection{Active: false}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return &TokenIntrospection{Active: false}, errors.New("error extracting claims from token")
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	clientID, _ := claims["client_id"].(string)
	scope, _ := claims["scope"].(string)
	grantType, _ := claims["grant_type"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	iatInt := int64(iat)
	expInt := int64(exp)

	return &TokenIntrospection{
		Active:    m.nowFunc().Unix() <= expInt,
		ClientID:  clientID,
		Scope:     scope,
		GrantType: grantType,
		Exp:       &expInt,
		Iat:       &iatInt,
		Iss:       &iss,
		Sub:       &sub,
		Jti:       jti,
	}, nil
}
