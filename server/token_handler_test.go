package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	challengemem "github.com/jrsteele09/go-mfa-grant/challenges/memrepo"
	"github.com/jrsteele09/go-mfa-grant/clients"
	clientmem "github.com/jrsteele09/go-mfa-grant/clients/memrepo"
	"github.com/jrsteele09/go-mfa-grant/grant"
	"github.com/jrsteele09/go-mfa-grant/hostmodel"
	"github.com/jrsteele09/go-mfa-grant/internal/config"
	"github.com/jrsteele09/go-mfa-grant/internal/metrics"
	"github.com/jrsteele09/go-mfa-grant/oauth2"
	"github.com/jrsteele09/go-mfa-grant/server"
	"github.com/jrsteele09/go-mfa-grant/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	clientID     = "thom"
	clientSecret = "nightworld"
	customGrant  = oauth2.GrantType("http://custom.com")
)

type testEnv struct {
	srv      *httptest.Server
	recorder *metrics.Recorder
	tokens   *token.Manager
}

func setup(t *testing.T, env string) *testEnv {
	t.Helper()
	t.Setenv("ENV", env)
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")

	hash, err := clients.HashSecret(clientSecret)
	require.NoError(t, err)
	clientRepo := clientmem.NewMemClientRepo()
	require.NoError(t, clientRepo.Upsert(&clients.Client{
		ID:         clientID,
		SecretHash: hash,
		GrantTypes: []oauth2.GrantType{oauth2.MfaOtpGrant, customGrant},
		Scopes:     []string{"read"},
	}))

	model := hostmodel.New(clientRepo, challengemem.NewMemChallengeRepo(time.Minute))
	tokens := token.New(token.NewHMACSigner("server-test-key"), token.WithIssuer("http://localhost"))
	dispatcher, err := grant.NewDispatcher(model, tokens, []oauth2.GrantType{oauth2.MfaOtpGrant, customGrant})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	recorder, err := metrics.New(reg)
	require.NoError(t, err)

	s, err := server.New(config.New(), dispatcher, model, tokens,
		server.WithMetrics(recorder, reg),
		server.WithChallengeIssuer(model),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, recorder: recorder, tokens: tokens}
}

func (e *testEnv) post(t *testing.T, path string, form url.Values, edit ...func(*http.Request)) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, fn := range edit {
		fn(req)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func mfaForm(otp, mfaToken string) url.Values {
	form := url.Values{
		"grant_type":    {string(oauth2.MfaOtpGrant)},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	if otp != "" {
		form.Set("otp", otp)
	}
	if mfaToken != "" {
		form.Set("mfa_token", mfaToken)
	}
	return form
}

func (e *testEnv) createChallenge(t *testing.T, userID string) (string, string) {
	t.Helper()
	resp, body := e.post(t, server.RouteDevMfaChallenges, url.Values{"client_id": {clientID}, "user_id": {userID}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["mfa_token"].(string), body["otp"].(string)
}

func TestToken_UnsupportedGrantType(t *testing.T) {
	e := setup(t, "DEV")

	resp, body := e.post(t, server.RouteOAuthToken, url.Values{
		"grant_type":    {string(customGrant)},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_request", body["error"])
	require.Regexp(t, `(?i)invalid grant_type`, body["error_description"])
}

func TestToken_UnknownGrantType(t *testing.T) {
	e := setup(t, "DEV")

	for _, grantType := range []string{"foo", "password", ""} {
		resp, body := e.post(t, server.RouteOAuthToken, url.Values{
			"grant_type":    {grantType},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
		})

		require.Equal(t, http.StatusBadRequest, resp.StatusCode, grantType)
		require.Equal(t, "invalid_request", body["error"])
		require.Regexp(t, `(?i)invalid grant_type`, body["error_description"])
	}
}

func TestToken_RequiresMfaToken(t *testing.T) {
	e := setup(t, "DEV")

	resp, body := e.post(t, server.RouteOAuthToken, mfaForm("123456", ""))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "You must provide otp and mfa token", body["error_description"])
}

func TestToken_RequiresOtp(t *testing.T) {
	e := setup(t, "DEV")

	resp, body := e.post(t, server.RouteOAuthToken, mfaForm("", "123456"))

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "You must provide otp and mfa token", body["error_description"])
}

func TestToken_InvalidOtp(t *testing.T) {
	e := setup(t, "DEV")

	resp, body := e.post(t, server.RouteOAuthToken, mfaForm("123456", "123456"))

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_token", body["error"])
	require.Equal(t, "Could not validate OTP.", body["error_description"])
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestToken_Success(t *testing.T) {
	e := setup(t, "DEV")
	mfaToken, otp := e.createChallenge(t, "3")

	form := mfaForm(otp, mfaToken)
	form.Set("scope", "read")
	resp, body := e.post(t, server.RouteOAuthToken, form)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	require.Equal(t, "no-cache", resp.Header.Get("Pragma"))
	require.NotEmpty(t, body["access_token"])
	require.Equal(t, "bearer", body["token_type"])
	require.Equal(t, float64(3600), body["expires_in"])
	require.Equal(t, "read", body["scope"])
	require.NotContains(t, body, "refresh_token")

	info, err := e.tokens.Introspection(body["access_token"].(string))
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, "3", *info.Sub)

	require.Equal(t, 1.0, testutil.ToFloat64(e.recorder.Requests().WithLabelValues(string(oauth2.MfaOtpGrant), metrics.ResultIssued)))

	// The challenge is single use.
	resp, body = e.post(t, server.RouteOAuthToken, mfaForm(otp, mfaToken))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_token", body["error"])
}

func TestToken_InvalidScope(t *testing.T) {
	e := setup(t, "DEV")
	mfaToken, otp := e.createChallenge(t, "3")

	form := mfaForm(otp, mfaToken)
	form.Set("scope", "admin")
	resp, body := e.post(t, server.RouteOAuthToken, form)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "invalid_scope", body["error"])
}

func TestToken_BasicAuthRejected(t *testing.T) {
	e := setup(t, "DEV")

	form := url.Values{
		"grant_type": {string(oauth2.MfaOtpGrant)},
		"otp":        {"123456"},
		"mfa_token":  {"abc"},
	}
	resp, body := e.post(t, server.RouteOAuthToken, form, func(r *http.Request) {
		r.SetBasicAuth(clientID, "wrong")
	})

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_client", body["error"])
	require.Equal(t, `Basic realm="Service"`, resp.Header.Get("WWW-Authenticate"))
}

func TestToken_RejectsGet(t *testing.T) {
	e := setup(t, "DEV")

	resp, err := http.Get(e.srv.URL + server.RouteOAuthToken + "?grant_type=urn:custom:mfa-otp")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := map[string]string{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_request", body["error"])
	require.Equal(t, 1.0, testutil.ToFloat64(e.recorder.Requests().WithLabelValues("none", metrics.ResultRejected)))
}

func TestIntrospect(t *testing.T) {
	e := setup(t, "DEV")
	mfaToken, otp := e.createChallenge(t, "3")
	_, tokenBody := e.post(t, server.RouteOAuthToken, mfaForm(otp, mfaToken))

	auth := func(r *http.Request) { r.SetBasicAuth(clientID, clientSecret) }

	resp, body := e.post(t, server.RouteOAuthIntrospect, url.Values{"token": {tokenBody["access_token"].(string)}}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["active"])
	require.Equal(t, clientID, body["client_id"])
	require.Equal(t, "3", body["sub"])

	resp, body = e.post(t, server.RouteOAuthIntrospect, url.Values{"token": {"garbage"}}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["active"])

	resp, _ = e.post(t, server.RouteOAuthIntrospect, url.Values{"token": {"garbage"}})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDevChallengeRouteOnlyInDev(t *testing.T) {
	e := setup(t, "PROD")

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+server.RouteDevMfaChallenges,
		strings.NewReader(url.Values{"client_id": {clientID}, "user_id": {"3"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	e := setup(t, "DEV")

	resp, err := http.Get(e.srv.URL + server.RouteHealth)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Generate one counted request so the metric family is exported.
	e.post(t, server.RouteOAuthToken, mfaForm("123456", ""))

	resp, err = http.Get(e.srv.URL + server.RouteMetrics)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(data), "oauth_token_requests_total")
}

func TestCorsPreflight(t *testing.T) {
	e := setup(t, "DEV")

	req, err := http.NewRequest(http.MethodOptions, e.srv.URL+server.RouteOAuthToken, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")

	req, err = http.NewRequest(http.MethodOptions, e.srv.URL+server.RouteOAuthToken, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCorsPreflight_APIRoutes(t *testing.T) {
	e := setup(t, "DEV")

	for _, route := range []string{server.RouteOAuthIntrospect, server.RouteDevMfaChallenges} {
		req, err := http.NewRequest(http.MethodOptions, e.srv.URL+route, nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "https://app.example.com")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		require.Equal(t, http.StatusNoContent, resp.StatusCode, route)
		require.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"), route)
		require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST", route)
	}

	// A plain OPTIONS without an Origin does not reach the handler.
	req, err := http.NewRequest(http.MethodOptions, e.srv.URL+server.RouteOAuthIntrospect, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
