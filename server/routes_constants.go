package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth2 / OIDC Routes
	RouteAuthorize             = "/authorize"
	RouteToken                 = "/oauth/token"
	RouteUserInfo              = "/userinfo"
	RouteLogout                = "/v2/logout"
	RouteWellKnownJWKS         = "/.well-known/jwks.json"
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"

	// Universal login screens
	RouteScreen    = "/u/{screen}"
	RouteFormNode  = "/u/forms/{formId}/nodes/{nodeId}"
	RouteHookDone  = "/u/complete"
	RouteContinue  = "/u/continue"
	RouteMagicLink = "/passwordless/verify_redirect"
	RouteCallback  = "/callback"

	// Cross-origin (embedded login) API
	RoutePasswordlessStart = "/passwordless/start"
	RouteCoAuthenticate    = "/co/authenticate"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
