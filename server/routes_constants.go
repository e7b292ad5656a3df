package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Account and token endpoints
	RouteRegister = "/connect/register"
	RouteToken    = "/connect/token"
	RouteRefresh  = "/connect/refresh"

	// Protected resources
	RouteUsers = "/users"

	// Key distribution
	RouteWellKnownJWKS = "/.well-known/jwks.json"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
