package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-mfa-grant/internal/metrics"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/oauthmodel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	basicRealm      = `Basic realm="Service"`
)

// Token serves the OAuth 2.0 token endpoint.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		tokenReq, err := oauthmodel.ParseTokenRequest(w, r)
		if err != nil {
			s.observe("", err, start)
			writeOAuthError(w, err)
			return
		}

		tokenResponse, err := s.dispatcher.Token(r.Context(), tokenReq)
		s.observe(s.grantLabel(tokenReq.GrantType), err, start)
		if err != nil {
			writeOAuthError(w, err)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		writeJSON(w, http.StatusOK, tokenResponse)
	}
}

// Introspect reports whether an access token issued by this service is active (RFC 7662).
// The caller authenticates as a client.
func (s *Server) Introspect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, string(oauth2.InvalidRequest), oauthmodel.MsgMalformedBody, http.StatusBadRequest)
			return
		}

		clientID, clientSecret, basic := r.BasicAuth()
		if !basic {
			clientID = r.PostForm.Get("client_id")
			clientSecret = r.PostForm.Get("client_secret")
		}
		client, err := s.model.GetClient(r.Context(), clientID, clientSecret)
		if err != nil {
			log.Error().Err(err).Msg("introspection client lookup failed")
			writeOAuthError(w, err)
			return
		}
		if client == nil {
			w.Header().Set("WWW-Authenticate", basicRealm)
			writeJSONError(w, string(oauth2.InvalidClient), oauthmodel.MsgInvalidClient, http.StatusUnauthorized)
			return
		}

		rawToken := r.PostForm.Get("token")
		if strings.TrimSpace(rawToken) == "" {
			writeJSONError(w, string(oauth2.InvalidRequest), "token parameter is required", http.StatusBadRequest)
			return
		}

		introspection, err := s.tokens.Introspection(rawToken)
		if err != nil {
			log.Debug().Err(err).Str("client_id", clientID).Msg("token failed introspection")
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, introspection)
	}
}

// CreateMfaChallenge issues an mfa_token and OTP for a user. Development only.
func (s *Server) CreateMfaChallenge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, string(oauth2.InvalidRequest), oauthmodel.MsgMalformedBody, http.StatusBadRequest)
			return
		}
		clientID := strings.TrimSpace(r.PostForm.Get("client_id"))
		userID := strings.TrimSpace(r.PostForm.Get("user_id"))
		if clientID == "" || userID == "" {
			writeJSONError(w, string(oauth2.InvalidRequest), "client_id and user_id are required", http.StatusBadRequest)
			return
		}

		mfaToken, otp, err := s.challenges.CreateChallenge(r.Context(), clientID, userID)
		if err != nil {
			log.Warn().Err(err).Str("client_id", clientID).Msg("could not create mfa challenge")
			writeJSONError(w, string(oauth2.InvalidRequest), "could not create challenge", http.StatusBadRequest)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusCreated, map[string]string{
			"mfa_token": mfaToken,
			"otp":       otp,
		})
	}
}

// grantLabel keeps metric label values bounded to the configured grants.
func (s *Server) grantLabel(grantType oauth2.GrantType) string {
	if s.dispatcher.Allows(grantType) {
		return string(grantType)
	}
	return "unsupported"
}

func (s *Server) observe(grantType string, err error, start time.Time) {
	result := metrics.ResultIssued
	if err != nil {
		result = metrics.ResultRejected
		var oauthErr *oauth2.Error
		if !errors.As(err, &oauthErr) || oauthErr.Code == oauth2.ServerError {
			result = metrics.ResultError
		}
	}
	s.metrics.Observe(grantType, result, time.Since(start))
}

// writeOAuthError writes err with its OAuth code and status. Errors that are
// not *oauth2.Error are reported as server_error.
func writeOAuthError(w http.ResponseWriter, err error) {
	var oauthErr *oauth2.Error
	if !errors.As(err, &oauthErr) {
		oauthErr = oauth2.NewError(oauth2.ServerError, oauthmodel.MsgServerError)
	}
	if oauthErr.Code == oauth2.InvalidClient && oauthErr.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", basicRealm)
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSONError(w, string(oauthErr.Code), oauthErr.Description, oauthErr.Status)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
