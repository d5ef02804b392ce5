package auth_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/clients"
	clientrepofakes "github.com/jrsteele09/go-auth-engine/clients/repofakes"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/connections"
	connectionrepofakes "github.com/jrsteele09/go-auth-engine/connections/repofakes"
	"github.com/jrsteele09/go-auth-engine/hooks"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/notify"
	"github.com/jrsteele09/go-auth-engine/oauthmodel"
	organizationrepofakes "github.com/jrsteele09/go-auth-engine/organizations/repofakes"
	resourceserverrepofakes "github.com/jrsteele09/go-auth-engine/resourceservers/repofakes"
	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/jrsteele09/go-auth-engine/tenants"
	tenantrepofakes "github.com/jrsteele09/go-auth-engine/tenants/repofakes"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/token/refresh"
	"github.com/jrsteele09/go-auth-engine/users"
	userrepofakes "github.com/jrsteele09/go-auth-engine/users/repofakes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testTenantID           = "acme"
	testIssuer             = "https://acme.auth.example.com/"
	testAudience           = "https://api.example.com"
	testManagementAudience = "https://acme.auth.example.com/api/v2/"
	testClientID           = "spa-client"
	testBackendClientID    = "backend-client"
	testClientSecret       = "test-secret-1"
	testRedirectURI        = "https://app.example.com/callback"
	testOrigin             = "https://app.example.com"
	testState              = "random-state-value"
	testNonce              = "random-nonce-value"
	testCodeChallenge      = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	testCodeVerifier       = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testUserEmail          = "john.doe@example.com"
	testUserPassword       = "Password123"
	passwordConnection     = string(connections.StrategyPassword)
)

// fakeGate returns fixed decisions and counts the post-login calls.
type fakeGate struct {
	signup         hooks.Decision
	postLogin      hooks.Decision
	postLoginCalls int
}

func (g *fakeGate) ValidateSignupEmail(context.Context, hooks.SignupRequest) (hooks.Decision, error) {
	if g.signup.Action == "" {
		return hooks.Allow(), nil
	}
	return g.signup, nil
}

func (g *fakeGate) PostLogin(context.Context, hooks.LoginEvent) (hooks.Decision, error) {
	g.postLoginCalls++
	if g.postLogin.Action == "" {
		return hooks.Allow(), nil
	}
	return g.postLogin, nil
}

// testFixture holds all test dependencies
type testFixture struct {
	now time.Time

	tenants         *tenantrepofakes.FakeTenantRepo
	clients         *clientrepofakes.FakeClientRepo
	connections     *connectionrepofakes.FakeConnectionRepo
	users           *userrepofakes.FakeUserRepo
	passwords       *userrepofakes.FakePasswordRepo
	organizations   *organizationrepofakes.FakeOrganizationRepo
	resourceServers *resourceserverrepofakes.FakeResourceServerRepo
	permissions     *resourceserverrepofakes.FakePermissionRepo
	clientGrants    *resourceserverrepofakes.FakeClientGrantRepo
	loginSessions   *loginsessions.InMemoryLoginSessionRepo
	sessions        *sessions.InMemorySessionRepo
	refreshTokens   *refresh.InMemoryRefreshTokenRepo
	codes           *codes.InMemoryCodeRepo

	gate     *fakeGate
	forms    *hooks.InMemoryFormRepo
	notifier *notify.Recorder
	audit    *audit.MemorySink
	tokens   *token.Manager
	tenant   *tenants.Tenant
	service  *auth.AuthorizationService
}

// setupTestFixture creates a tenant with an email, an sms and a password connection, a public
// SPA client and a confidential backend client.
func setupTestFixture(t *testing.T, options ...auth.AuthorizationServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		now:             time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		tenants:         tenantrepofakes.NewFakeTenantRepo(),
		clients:         clientrepofakes.NewFakeClientRepo(),
		connections:     connectionrepofakes.NewFakeConnectionRepo(),
		users:           userrepofakes.NewFakeUserRepo(),
		passwords:       userrepofakes.NewFakePasswordRepo(),
		organizations:   organizationrepofakes.NewFakeOrganizationRepo(),
		resourceServers: resourceserverrepofakes.NewFakeResourceServerRepo(),
		permissions:     resourceserverrepofakes.NewFakePermissionRepo(),
		clientGrants:    resourceserverrepofakes.NewFakeClientGrantRepo(),
		refreshTokens:   refresh.NewInMemoryRefreshTokenRepo(),
		sessions:        sessions.NewInMemorySessionRepo(),
		gate:            &fakeGate{},
		forms:           hooks.NewInMemoryFormRepo(),
		notifier:        notify.NewRecorder(),
		audit:           audit.NewMemorySink(),
	}
	now := func() time.Time { return f.now }
	f.loginSessions = loginsessions.NewInMemoryLoginSessionRepo(now)
	f.codes = codes.NewInMemoryCodeRepo(now)
	f.tokens = token.New(token.WithNowFunc(now))

	ctx := context.Background()
	f.tenant = &tenants.Tenant{
		ID:                 testTenantID,
		Name:               "Acme",
		Issuer:             testIssuer,
		ManagementAudience: testManagementAudience,
		SignerType:         tenants.SignerTypeHMAC,
		HMACSecret:         "secret-for-acme",
	}
	require.NoError(t, f.tenants.Upsert(ctx, f.tenant))

	for _, conn := range []*connections.Connection{
		{ID: "con_email", TenantID: testTenantID, Name: "email", Strategy: connections.StrategyEmail},
		{ID: "con_sms", TenantID: testTenantID, Name: "sms", Strategy: connections.StrategySMS},
		{ID: "con_pwd", TenantID: testTenantID, Name: passwordConnection, Strategy: connections.StrategyPassword},
		{ID: "con_google", TenantID: testTenantID, Name: "google", Strategy: connections.StrategyOIDC, Options: connections.Options{
			Issuer: "https://accounts.example.com", ClientID: "upstream-client",
		}},
	} {
		require.NoError(t, f.connections.Upsert(ctx, conn))
	}

	require.NoError(t, f.clients.Upsert(ctx, &clients.Client{
		ID:                testClientID,
		TenantID:          testTenantID,
		Name:              "SPA",
		Type:              clients.ClientTypePublic,
		RedirectURIs:      []string{testRedirectURI},
		AllowedLogoutURLs: []string{"https://app.example.com/bye"},
		Connections:       []string{"email", "sms", passwordConnection, "google"},
	}))
	require.NoError(t, f.clients.Upsert(ctx, &clients.Client{
		ID:           testBackendClientID,
		TenantID:     testTenantID,
		Name:         "Backend",
		Type:         clients.ClientTypeConfidential,
		Secret:       testClientSecret,
		RedirectURIs: []string{testRedirectURI},
		Connections:  []string{"email", passwordConnection},
	}))

	f.service = f.newService(t, f.repos(), options...)
	return f
}

func (f *testFixture) repos() auth.Repos {
	return auth.Repos{
		Tenants:         f.tenants,
		Clients:         f.clients,
		Connections:     f.connections,
		Users:           f.users,
		Passwords:       f.passwords,
		Organizations:   f.organizations,
		ResourceServers: f.resourceServers,
		Permissions:     f.permissions,
		ClientGrants:    f.clientGrants,
		LoginSessions:   f.loginSessions,
		Sessions:        f.sessions,
		RefreshTokens:   f.refreshTokens,
		Codes:           f.codes,
	}
}

// newService builds a service over repos sharing the fixture's clock, hooks and sinks.
func (f *testFixture) newService(t *testing.T, repos auth.Repos, options ...auth.AuthorizationServiceOption) *auth.AuthorizationService {
	t.Helper()
	opts := []auth.AuthorizationServiceOption{
		auth.WithNowTime(func() time.Time { return f.now }),
		auth.WithLogger(zerolog.Nop()),
		auth.WithSecureCookies(false),
		auth.WithHooks(f.gate, f.forms),
		auth.WithNotifier(f.notifier),
		auth.WithAuditSink(f.audit),
		auth.WithCleanupRunner(func(run func()) { run() }),
	}
	service, err := auth.NewAuthorizationService(repos, f.tokens, append(opts, options...)...)
	require.NoError(t, err)
	return service
}

func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// codeParams is a PKCE authorization code request of the SPA client.
func codeParams() oauthmodel.AuthorizationParameters {
	return oauthmodel.AuthorizationParameters{
		TenantID:            testTenantID,
		ClientID:            testClientID,
		ResponseType:        oauthmodel.CodeResponseType,
		RedirectURI:         testRedirectURI,
		Scope:               "openid profile email",
		State:               testState,
		Nonce:               testNonce,
		CodeChallenge:       testCodeChallenge,
		CodeChallengeMethod: oauthmodel.CodeMethodTypeS256,
	}
}

// authorize starts a login that must land on the identifier screen and returns its login session.
func (f *testFixture) authorize(t *testing.T, params oauthmodel.AuthorizationParameters) *loginsessions.LoginSession {
	t.Helper()
	res := f.service.Authorize(context.Background(), params, auth.RequestInfo{IP: "10.0.0.1", UserAgent: "test"})
	require.Equal(t, auth.ResultRedirect, res.Kind, "unexpected result: %+v", res)
	require.True(t, strings.HasPrefix(res.URL, "/u/"+auth.ScreenIdentifier+"?"), res.URL)
	return f.loginSession(t, stateOf(t, res.URL))
}

func (f *testFixture) loginSession(t *testing.T, state string) *loginsessions.LoginSession {
	t.Helper()
	ls, err := f.service.LoginSession(context.Background(), testTenantID, state)
	require.NoError(t, err)
	return ls
}

func (f *testFixture) createPasswordUser(t *testing.T, email, password string) *users.User {
	t.Helper()
	ctx := context.Background()
	user := &users.User{
		TenantID:      testTenantID,
		Provider:      connections.ProviderPassword,
		Connection:    passwordConnection,
		Email:         email,
		EmailVerified: true,
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	require.NoError(t, f.users.Create(ctx, user))
	hash, err := users.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, f.passwords.Create(ctx, &users.Password{TenantID: testTenantID, UserID: user.ID, Hash: hash, CreatedAt: f.now}))
	return user
}

func (f *testFixture) user(t *testing.T, id string) *users.User {
	t.Helper()
	u, err := f.users.Get(context.Background(), testTenantID, id)
	require.NoError(t, err)
	return u
}

// passwordLogin runs identifier and password screens and returns the final result.
func (f *testFixture) passwordLogin(t *testing.T, params oauthmodel.AuthorizationParameters, email, password string) (*loginsessions.LoginSession, auth.Result) {
	t.Helper()
	ctx := context.Background()
	ls := f.authorize(t, params)
	res := f.service.SubmitIdentifier(ctx, ls, email, auth.RequestInfo{})
	require.Equal(t, auth.ScreenEnterPassword, res.Screen)
	require.NoError(t, res.Err)
	return ls, f.service.VerifyPassword(ctx, ls, password, auth.RequestInfo{IP: "10.0.0.1"})
}

// codeLogin runs identifier and enter-code screens with the code that was sent.
func (f *testFixture) codeLogin(t *testing.T, params oauthmodel.AuthorizationParameters, identifier string) (*loginsessions.LoginSession, auth.Result) {
	t.Helper()
	ctx := context.Background()
	ls := f.authorize(t, params)
	res := f.service.SubmitIdentifier(ctx, ls, identifier, auth.RequestInfo{})
	require.NoError(t, res.Err)
	require.Equal(t, auth.ScreenEnterCode, res.Screen)
	sent, ok := f.notifier.Last()
	require.True(t, ok)
	return ls, f.service.VerifyCode(ctx, ls, sent.Code, auth.RequestInfo{IP: "10.0.0.1"})
}

// exchange redeems an authorization code of the SPA client.
func (f *testFixture) exchange(t *testing.T, code string) *oauthmodel.TokenResponse {
	t.Helper()
	resp, err := f.service.Token(context.Background(), oauthmodel.TokenRequest{
		TenantID:     testTenantID,
		GrantType:    oauthmodel.AuthorizationCodeGrant,
		ClientID:     testClientID,
		Code:         code,
		CodeVerifier: testCodeVerifier,
		RedirectURI:  testRedirectURI,
	})
	require.NoError(t, err)
	return resp
}

func stateOf(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

// redirectQuery returns the query of a redirect to the client.
func redirectQuery(t *testing.T, res auth.Result) url.Values {
	t.Helper()
	require.Equal(t, auth.ResultRedirect, res.Kind, "unexpected result: %+v", res)
	require.True(t, strings.HasPrefix(res.URL, testRedirectURI+"?"), res.URL)
	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	return u.Query()
}

func sessionCookie(t *testing.T, res auth.Result) string {
	t.Helper()
	for _, c := range res.Cookies {
		if c.Name == auth.SessionCookieName {
			return c.Value
		}
	}
	require.Fail(t, "no session cookie on result")
	return ""
}
