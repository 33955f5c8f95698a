package server

// Route path constants
const (
	// OAuth2 token endpoint. Registered without a method so the token
	// request parser can answer non-POST requests with an OAuth error.
	RouteOAuthToken      = "/oauth/token"
	RouteOAuthIntrospect = "/oauth/introspect"

	// Operational routes
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Development only: stands in for the first factor by issuing an MFA challenge
	RouteDevMfaChallenges = "/dev/mfa/challenges"
)
