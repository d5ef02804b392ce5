package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// OAuth2 / OIDC browser endpoints
	s.RegisterRouteHandler("GET "+RouteAuthorize, ChainMiddleware(s.Authorize(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.Logout(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.UpstreamCallback(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.UpstreamCallback(), s.HTMLMiddleWare()...)) // For form_post response mode

	// Universal login screens
	s.RegisterRouteHandler("GET "+RouteScreen, ChainMiddleware(s.ScreenGet(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteScreen, ChainMiddleware(s.ScreenPost(), s.HTMLMiddleWare(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteFormNode, ChainMiddleware(s.FormNodeGet(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteFormNode, ChainMiddleware(s.FormNodePost(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteHookDone, ChainMiddleware(s.CompleteHook(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteContinue, ChainMiddleware(s.ResumeContinuation(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteMagicLink, ChainMiddleware(s.MagicLink(), s.HTMLMiddleWare(s.RateLimitMiddleware)...))

	// Cross-origin API
	s.RegisterRouteHandler("OPTIONS "+RoutePasswordlessStart, ChainMiddleware(s.Preflight(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RoutePasswordlessStart, ChainMiddleware(s.PasswordlessStart(), s.APIMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("OPTIONS "+RouteCoAuthenticate, ChainMiddleware(s.Preflight(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCoAuthenticate, ChainMiddleware(s.CrossOriginAuthenticate(), s.APIMiddleware(s.RateLimitMiddleware)...))

	// OAuth2 / OIDC API routes
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.Token(), s.APIMiddleware(s.RateLimitMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(s.UserInfo(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKS(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.WellKnownOpenIDConfig(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
}
