package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// Auth Routes
	RouteLogin        = "/login"
	RouteAuthLogin    = "/auth/login"
	RouteRegister     = "/register"
	RouteAuthRegister = "/auth/register"
	RouteAuthLogout   = "/auth/logout"

	// Protected views
	RouteDashboard   = "/dashboard"
	RouteClasses     = "/classes"
	RouteClassDelete = "/classes/{id}/delete"

	// API Routes
	RouteAPISession           = "/api/session"
	RouteAPISessionClearError = "/api/session/clear-error"
	RouteMetrics              = "/metrics"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
