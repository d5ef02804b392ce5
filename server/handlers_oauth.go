package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-engine/auth"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/oauthmodel"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/jrsteele09/go-auth-engine/token"
)

// Authorize begins the authorization flow
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			s.renderError(w, err, textFor(r, nil, nil))
			return
		}
		params := oauthmodel.ParseAuthorizationParameters(r.URL.Query())
		params.TenantID = tenant.ID
		res := s.auth.Authorize(r.Context(), *params, requestInfo(r))
		s.writeResult(w, r, tenant, nil, res)
	}
}

// Logout ends the browser session (GET /v2/logout?client_id=&returnTo=)
func (s *Server) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			s.renderError(w, err, textFor(r, nil, nil))
			return
		}
		info := requestInfo(r)
		res := s.auth.Logout(r.Context(), auth.LogoutRequest{
			TenantID:  tenant.ID,
			ClientID:  r.URL.Query().Get("client_id"),
			ReturnTo:  r.URL.Query().Get("returnTo"),
			SessionID: info.SessionID,
			IP:        info.IP,
		})
		s.writeResult(w, r, tenant, nil, res)
	}
}

// UpstreamCallback receives the authorization response of an upstream identity provider
func (s *Server) UpstreamCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			s.renderError(w, err, textFor(r, nil, nil))
			return
		}
		if err := r.ParseForm(); err != nil {
			s.renderError(w, apperrors.Validation("", "Invalid callback parameters."), textFor(r, tenant, nil))
			return
		}
		upstreamError := r.Form.Get("error")
		if desc := r.Form.Get("error_description"); upstreamError != "" && desc != "" {
			upstreamError += ": " + desc
		}
		res := s.auth.UpstreamCallback(r.Context(), tenant.ID, r.Form.Get("state"), r.Form.Get("code"), upstreamError, requestInfo(r))
		s.writeResult(w, r, tenant, nil, res)
	}
}

// Token exchanges code/credentials for tokens
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			writeJSONError(w, auth.CodeInvalidRequest, "unknown tenant", http.StatusBadRequest)
			return
		}

		// Parse token request from form data
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, auth.CodeInvalidRequest, "Failed to parse form data", http.StatusBadRequest)
			return
		}

		tokenReq := oauthmodel.ParseTokenRequest(r.PostForm)
		tokenReq.TenantID = tenant.ID
		// client_secret_basic
		if id, secret, ok := r.BasicAuth(); ok && tokenReq.ClientID == "" {
			tokenReq.ClientID = id
			tokenReq.ClientSecret = secret
		}

		tokenResponse, err := s.auth.Token(r.Context(), tokenReq)
		if err != nil {
			code, description := errorBody(err)
			writeJSONError(w, code, description, tokenErrorStatus(code, err))
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		writeJSON(w, http.StatusOK, tokenResponse)
	}
}

// tokenErrorStatus follows RFC 6749 section 5.2: 401 for client authentication failures, 400
// for everything the client can fix.
func tokenErrorStatus(code string, err error) int {
	switch {
	case code == auth.CodeInvalidClient:
		return http.StatusUnauthorized
	case apperrors.KindOf(err) == apperrors.KindTransient:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// UserInfo returns information about the user
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			writeJSONError(w, auth.CodeInvalidRequest, "unknown tenant", http.StatusBadRequest)
			return
		}

		// Extract access token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
			writeJSONError(w, "invalid_token", "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			writeJSONError(w, "invalid_token", "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		userInfo, err := s.auth.UserInfo(r.Context(), tenant.ID, strings.TrimSpace(parts[1]))
		if err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, userInfo)
	}
}

// JWKS publishes the tenant's token signing keys
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			writeJSONError(w, auth.CodeInvalidRequest, "unknown tenant", http.StatusBadRequest)
			return
		}

		jwks, err := s.auth.Tokens().JWKS(tenant)
		if apperrors.Is(err, token.ErrJWKSUnsupported) {
			jwks = &token.JWKS{Keys: []token.JWK{}}
		} else if err != nil {
			writeAPIError(w, apperrors.Transient("Failed to load signing keys", err))
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		writeJSON(w, http.StatusOK, jwks)
	}
}

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r.Context(), r.Host)
		if err != nil {
			writeJSONError(w, auth.CodeInvalidRequest, "unknown tenant", http.StatusBadRequest)
			return
		}

		issuer := tenant.Issuer
		if issuer == "" {
			issuer = getScheme(r) + "://" + r.Host + "/"
		}
		baseURL := strings.TrimSuffix(issuer, "/")

		signingAlg := string(tenant.SignerType)
		if signingAlg == "" {
			signingAlg = string(tenants.SignerTypeHMAC)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": baseURL + RouteAuthorize,
			"token_endpoint":         baseURL + RouteToken,
			"userinfo_endpoint":      baseURL + RouteUserInfo,
			"jwks_uri":               baseURL + RouteWellKnownJWKS,
			"end_session_endpoint":   baseURL + RouteLogout,

			"response_types_supported": []oauthmodel.ResponseType{
				oauthmodel.CodeResponseType,
				oauthmodel.TokenResponseType,
				oauthmodel.IDTokenResponseType,
				oauthmodel.IDTokenTokenResponseType,
			},
			"response_modes_supported": []oauthmodel.ResponseModeType{
				oauthmodel.QueryResponseMode,
				oauthmodel.FragmentResponseMode,
				oauthmodel.FormPostResponseMode,
				oauthmodel.WebMessageResponseMode,
			},
			"subject_types_supported": []string{"public"},

			"id_token_signing_alg_values_supported": []string{signingAlg},
			"scopes_supported":                      []string{"openid", "profile", "email", "phone", "offline_access"},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_post",
				"client_secret_basic",
				"none", // For public clients with PKCE
			},
			"grant_types_supported": []oauthmodel.GrantType{
				oauthmodel.AuthorizationCodeGrant,
				oauthmodel.RefreshTokenCodeGrant,
				oauthmodel.ClientCredentialsCodeGrant,
			},
			"code_challenge_methods_supported": []string{"S256", "plain"},
			"claims_supported": []string{
				"sub", "iss", "aud", "exp", "iat", "nonce",
				"email", "email_verified", "phone_number", "phone_number_verified",
				"name", "given_name", "family_name", "org_id",
			},
		})
	}
}
