package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/internal/authtest"
	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/jrsteele09/go-auth-engine/internal/metrics"
	"github.com/jrsteele09/go-auth-engine/server"
	"github.com/stretchr/testify/require"
)

const tenantHost = "http://" + authtest.TenantID + ".auth.test"

type testServer struct {
	*authtest.Fixture
	srv *server.Server
}

func newTestServer(t *testing.T, options ...server.ServerOption) *testServer {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("BASE_URL", "http://auth.test")
	t.Setenv("DEFAULT_TENANT_ID", authtest.TenantID)
	t.Setenv("CORS_ALLOWED_ORIGINS", authtest.Origin)

	f := authtest.New(t)
	srv, err := server.New(config.New(), f.Service, append([]server.ServerOption{server.WithRateLimit(0, 0)}, options...)...)
	require.NoError(t, err)
	return &testServer{Fixture: f, srv: srv}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	return w
}

func (ts *testServer) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, tenantHost+path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return ts.do(t, req)
}

func (ts *testServer) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, tenantHost+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(t, req)
}

func authorizeQuery() url.Values {
	q := url.Values{}
	q.Set("client_id", authtest.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", authtest.RedirectURI)
	q.Set("scope", "openid profile email")
	q.Set("state", authtest.State)
	q.Set("nonce", authtest.Nonce)
	q.Set("code_challenge", authtest.CodeChallenge)
	q.Set("code_challenge_method", "S256")
	return q
}

// startLogin calls /authorize and returns the login session state of the identifier screen.
func (ts *testServer) startLogin(t *testing.T) string {
	t.Helper()
	w := ts.get(t, server.RouteAuthorize+"?"+authorizeQuery().Encode())
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/u/"+auth.ScreenIdentifier, loc.Path)
	return loc.Query().Get("state")
}

func (ts *testServer) submit(t *testing.T, screen, state string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	form.Set("csrf", ts.LoginSession(t, state).CSRFToken)
	return ts.post(t, auth.ScreenPath(screen, state), form)
}

func location(t *testing.T, w *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	u, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return u
}

func TestPasswordlessLoginEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	state := ts.startLogin(t)

	w := ts.get(t, auth.ScreenPath(auth.ScreenIdentifier, state))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `data-screen="login"`)
	require.Contains(t, w.Body.String(), ts.LoginSession(t, state).CSRFToken)
	require.Equal(t, "SAMEORIGIN", w.Header().Get("X-Frame-Options"))

	w = ts.submit(t, auth.ScreenIdentifier, state, url.Values{"username": {authtest.UserEmail}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, auth.ScreenPath(auth.ScreenEnterCode, state), w.Header().Get("Location"))

	sent, ok := ts.Notifier.Last()
	require.True(t, ok)
	w = ts.submit(t, auth.ScreenEnterCode, state, url.Values{"code": {sent.Code}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	callback := location(t, w)
	require.Equal(t, authtest.RedirectURI, callback.Scheme+"://"+callback.Host+callback.Path)
	require.Equal(t, authtest.State, callback.Query().Get("state"))

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)

	w = ts.post(t, server.RouteToken, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {authtest.ClientID},
		"code":          {callback.Query().Get("code")},
		"code_verifier": {authtest.CodeVerifier},
		"redirect_uri":  {authtest.RedirectURI},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	var tokens map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens["id_token"])
	require.Equal(t, "Bearer", tokens["token_type"])

	req := httptest.NewRequest(http.MethodGet, tenantHost+server.RouteUserInfo, nil)
	req.Header.Set("Authorization", "Bearer "+tokens["access_token"].(string))
	w = ts.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Equal(t, authtest.UserEmail, info["email"])

	// The completed login session cannot be submitted again.
	w = ts.get(t, auth.ScreenPath(auth.ScreenEnterCode, state))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestScreenPostRequiresCSRFToken(t *testing.T) {
	ts := newTestServer(t)
	state := ts.startLogin(t)

	w := ts.post(t, auth.ScreenPath(auth.ScreenIdentifier, state), url.Values{"username": {authtest.UserEmail}})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, ts.Notifier.Sent())

	w = ts.post(t, auth.ScreenPath(auth.ScreenIdentifier, state), url.Values{
		"username": {authtest.UserEmail},
		"csrf":     {"forged"},
	})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, ts.Notifier.Sent())
}

func TestInvalidIdentifierRerendersScreen(t *testing.T) {
	ts := newTestServer(t)
	state := ts.startLogin(t)

	w := ts.submit(t, auth.ScreenIdentifier, state, url.Values{"username": {""}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), `data-screen="login"`)
	require.Contains(t, w.Body.String(), `class="field-error"`)
}

func TestUnknownLoginSessionShowsLocalizedExpiry(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, auth.ScreenPath(auth.ScreenIdentifier, "no-such-state"))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "Your session has expired")

	req := httptest.NewRequest(http.MethodGet, tenantHost+auth.ScreenPath(auth.ScreenIdentifier, "no-such-state"), nil)
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9")
	w = ts.do(t, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), `lang="es"`)
}

func TestUnknownScreenIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	state := ts.startLogin(t)

	w := ts.get(t, auth.ScreenPath("no-such-screen", state))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnknownTenantIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "http://other.auth.test"+server.RouteAuthorize+"?"+authorizeQuery().Encode(), nil)
	w := ts.do(t, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPasswordResetNoticeSurvivesRedirect(t *testing.T) {
	ts := newTestServer(t)
	ts.CreatePasswordUser(t, authtest.UserEmail, authtest.UserPassword)
	state := ts.startLogin(t)

	w := ts.submit(t, auth.ScreenIdentifier, state, url.Values{"username": {authtest.UserEmail}})
	require.Equal(t, auth.ScreenPath(auth.ScreenEnterPassword, state), w.Header().Get("Location"))

	w = ts.submit(t, auth.ScreenEnterPassword, state, url.Values{"action": {"forgot-password"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, auth.ScreenPath(auth.ScreenEnterPassword, state), w.Header().Get("Location"))

	var notice *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_notice" {
			notice = c
		}
	}
	require.NotNil(t, notice)

	w = ts.get(t, auth.ScreenPath(auth.ScreenEnterPassword, state), notice)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), auth.NoticeResetSent)
}

func TestWrongPasswordRendersFieldError(t *testing.T) {
	ts := newTestServer(t)
	ts.CreatePasswordUser(t, authtest.UserEmail, authtest.UserPassword)
	state := ts.startLogin(t)
	ts.submit(t, auth.ScreenIdentifier, state, url.Values{"username": {authtest.UserEmail}})

	w := ts.submit(t, auth.ScreenEnterPassword, state, url.Values{"password": {"wrong"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), `data-screen="enter-password"`)
	require.Contains(t, w.Body.String(), "Wrong email or password.")
}

func TestMagicLinkWithBadCodeRendersEnterCode(t *testing.T) {
	ts := newTestServer(t)
	state := ts.startLogin(t)
	ts.submit(t, auth.ScreenIdentifier, state, url.Values{"username": {authtest.UserEmail}})

	q := url.Values{}
	q.Set("state", state)
	q.Set("verification_code", "000000")
	w := ts.get(t, server.RouteMagicLink+"?"+q.Encode())
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), `data-screen="enter-code"`)
}

func TestUpstreamLoginThroughCallback(t *testing.T) {
	ts := newTestServer(t)
	state := ts.startLogin(t)

	w := ts.submit(t, auth.ScreenIdentifier, state, url.Values{"connection": {"google"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	upstream := location(t, w)
	require.Equal(t, "accounts.example.com", upstream.Host)

	q := url.Values{}
	q.Set("state", upstream.Query().Get("state"))
	q.Set("code", authtest.UpstreamCode)
	w = ts.get(t, server.RouteCallback+"?"+q.Encode())
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	callback := location(t, w)
	require.NotEmpty(t, callback.Query().Get("code"))
	require.Equal(t, authtest.State, callback.Query().Get("state"))

	// Replayed callbacks find no state.
	w = ts.get(t, server.RouteCallback+"?"+q.Encode())
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenErrors(t *testing.T) {
	ts := newTestServer(t)

	w := ts.post(t, server.RouteToken, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {authtest.ClientID},
		"code":          {"not-a-code"},
		"code_verifier": {authtest.CodeVerifier},
		"redirect_uri":  {authtest.RedirectURI},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, auth.CodeInvalidGrant, body["error"])

	w = ts.post(t, server.RouteToken, url.Values{
		"grant_type": {"client_credentials"},
		"client_id":  {"no-such-client"},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, auth.CodeInvalidClient, body["error"])
}

func TestUserInfoRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, server.RouteUserInfo)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, tenantHost+server.RouteUserInfo, nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w = ts.do(t, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "invalid_token", body["error"])
}

func (ts *testServer) enableCrossOrigin(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	client, err := ts.Clients.Get(ctx, authtest.TenantID, authtest.ClientID)
	require.NoError(t, err)
	client.CrossOriginAuth = true
	require.NoError(t, ts.Clients.Upsert(ctx, client))
}

func (ts *testServer) crossOrigin(t *testing.T, path, origin string, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, tenantHost+path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", origin)
	return ts.do(t, req)
}

func TestCrossOriginAuthenticate(t *testing.T) {
	ts := newTestServer(t)
	ts.enableCrossOrigin(t)
	ts.CreatePasswordUser(t, authtest.UserEmail, authtest.UserPassword)

	credential := map[string]string{
		"client_id":       authtest.ClientID,
		"credential_type": auth.CredentialPassword,
		"realm":           authtest.PasswordConnection,
		"username":        authtest.UserEmail,
		"password":        authtest.UserPassword,
	}
	w := ts.crossOrigin(t, server.RouteCoAuthenticate, authtest.Origin, credential)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, authtest.Origin, w.Header().Get("Access-Control-Allow-Origin"))
	var result auth.CrossOriginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(t, result.LoginTicket)

	q := authorizeQuery()
	q.Set("login_ticket", result.LoginTicket)
	w = ts.get(t, server.RouteAuthorize+"?"+q.Encode())
	require.Equal(t, http.StatusFound, w.Code)
	require.NotEmpty(t, location(t, w).Query().Get("code"))

	w = ts.crossOrigin(t, server.RouteCoAuthenticate, "https://evil.example.com", credential)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, auth.CodeUnauthorizedClient, body["error"])
}

func TestPasswordlessStartSendsCode(t *testing.T) {
	ts := newTestServer(t)
	ts.enableCrossOrigin(t)

	w := ts.crossOrigin(t, server.RoutePasswordlessStart, authtest.Origin, map[string]string{
		"client_id":  authtest.ClientID,
		"connection": "email",
		"email":      authtest.UserEmail,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sent, ok := ts.Notifier.Last()
	require.True(t, ok)
	require.Equal(t, authtest.UserEmail, sent.To.Address)
}

func TestCrossOriginPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, tenantHost+server.RouteCoAuthenticate, nil)
	req.Header.Set("Origin", authtest.Origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := ts.do(t, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, authtest.Origin, w.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestLogoutRedirectsToAllowedURL(t *testing.T) {
	ts := newTestServer(t)

	q := url.Values{}
	q.Set("client_id", authtest.ClientID)
	q.Set("returnTo", authtest.LogoutURL)
	w := ts.get(t, server.RouteLogout+"?"+q.Encode())
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, authtest.LogoutURL, w.Header().Get("Location"))

	q.Set("returnTo", "https://evil.example.com")
	w = ts.get(t, server.RouteLogout+"?"+q.Encode())
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitRejectsBursts(t *testing.T) {
	ts := newTestServer(t, server.WithRateLimit(1, 1))

	form := url.Values{"grant_type": {"client_credentials"}, "client_id": {"no-such-client"}}
	w := ts.post(t, server.RouteToken, form)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = ts.post(t, server.RouteToken, form)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestDiscoveryAndKeys(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, server.RouteWellKnownOpenIDConfig)
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Equal(t, authtest.Issuer, doc["issuer"])
	require.Equal(t, "https://acme.auth.example.com/oauth/token", doc["token_endpoint"])

	w = ts.get(t, server.RouteWellKnownJWKS)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"keys":[]}`, w.Body.String())
}

func TestMetricsAndHealth(t *testing.T) {
	ts := newTestServer(t, server.WithMetrics(metrics.New()))

	w := ts.get(t, server.RouteHealth)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())

	ts.startLogin(t)
	w = ts.get(t, server.RouteMetrics)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `http_requests_total{method="GET",route="GET /authorize",status="302"} 1`)
}
