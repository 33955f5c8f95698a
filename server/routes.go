package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// OAuth2 API routes
	s.RegisterRouteHandler(RouteOAuthToken, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.registerAPIRoute(http.MethodPost, RouteOAuthIntrospect, s.Introspect())

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.Health(), s.RecoverMiddleware))
	if s.gatherer != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	if s.env == "DEV" && s.challenges != nil {
		s.registerAPIRoute(http.MethodPost, RouteDevMfaChallenges, s.CreateMfaChallenge())
	}
}

// registerAPIRoute registers handler for method plus an OPTIONS route on the
// same path, so CorsMiddleware answers preflights instead of the mux's 405.
func (s *Server) registerAPIRoute(method, path string, handler http.HandlerFunc) {
	s.RegisterRouteHandler(method+" "+path, ChainMiddleware(handler, s.APIMiddleware()...))
	s.RegisterRouteHandler(http.MethodOptions+" "+path, ChainMiddleware(noContent, s.APIMiddleware()...))
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Health reports that the process is serving.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
