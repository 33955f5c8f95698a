package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-mfa-grant/grant"
	"github.com/jrsteele09/go-mfa-grant/internal/config"
	"github.com/jrsteele09/go-mfa-grant/internal/metrics"
	"github.com/jrsteele09/go-mfa-grant/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// ChallengeIssuer starts an MFA challenge, standing in for the first factor
// of a real login flow.
type ChallengeIssuer interface {
	CreateChallenge(ctx context.Context, clientID, userID string) (mfaToken, otp string, err error)
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	dispatcher *grant.Dispatcher
	model      grant.Model
	tokens     *token.Manager
	metrics    *metrics.Recorder
	gatherer   prometheus.Gatherer
	challenges ChallengeIssuer
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithMetrics records token requests on recorder and serves gatherer on /metrics.
func WithMetrics(recorder *metrics.Recorder, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = recorder
		s.gatherer = gatherer
	}
}

// WithChallengeIssuer enables the development endpoint that creates MFA challenges.
// It is only routed when the environment is DEV.
func WithChallengeIssuer(issuer ChallengeIssuer) Option {
	return func(s *Server) {
		s.challenges = issuer
	}
}

func New(config config.Config, dispatcher *grant.Dispatcher, model grant.Model, tokens *token.Manager, options ...Option) (*Server, error) {
	if dispatcher == nil || model == nil || tokens == nil {
		return nil, fmt.Errorf("[Server New] dispatcher, model and token manager are required")
	}

	s := &Server{
		mux:        http.NewServeMux(),
		config:     config,
		dispatcher: dispatcher,
		model:      model,
		tokens:     tokens,
	}
	s.env = config.GetEnv()

	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered route patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("*", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
