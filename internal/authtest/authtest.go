// Package authtest builds an AuthorizationService over in-memory repositories for the tests of
// the packages layered on top of auth.
package authtest

import (
	"context"
	"errors"
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
	TenantID           = "acme"
	Issuer             = "https://acme.auth.example.com/"
	ManagementAudience = "https://acme.auth.example.com/api/v2/"
	ClientID           = "spa-client"
	RedirectURI        = "https://app.example.com/callback"
	Origin             = "https://app.example.com"
	LogoutURL          = "https://app.example.com/bye"
	State              = "random-state-value"
	Nonce              = "random-nonce-value"
	CodeChallenge      = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	CodeVerifier       = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	UserEmail          = "john.doe@example.com"
	UserPassword       = "Password123"
	PasswordConnection = string(connections.StrategyPassword)
)

// Gate is a hooks.Gate returning fixed decisions.
type Gate struct {
	Signup            hooks.Decision
	PostLoginDecision hooks.Decision
}

func (g *Gate) ValidateSignupEmail(context.Context, hooks.SignupRequest) (hooks.Decision, error) {
	if g.Signup.Action == "" {
		return hooks.Allow(), nil
	}
	return g.Signup, nil
}

func (g *Gate) PostLogin(context.Context, hooks.LoginEvent) (hooks.Decision, error) {
	if g.PostLoginDecision.Action == "" {
		return hooks.Allow(), nil
	}
	return g.PostLoginDecision, nil
}

// UpstreamCode is the only authorization code Upstream accepts.
const UpstreamCode = "upstream-code"

// Upstream is an auth.UpstreamProvider returning Identity for UpstreamCode.
type Upstream struct {
	Identity auth.UpstreamIdentity
}

func (u *Upstream) AuthCodeURL(_ context.Context, conn *connections.Connection, redirectURI, state, _, _ string) (string, error) {
	q := url.Values{}
	q.Set("client_id", conn.Options.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return conn.Options.Issuer + "/authorize?" + q.Encode(), nil
}

func (u *Upstream) Exchange(_ context.Context, _ *connections.Connection, _, code, _, _ string) (*auth.UpstreamIdentity, error) {
	if code != UpstreamCode {
		return nil, errors.New("upstream rejected the code")
	}
	identity := u.Identity
	return &identity, nil
}

type Fixture struct {
	Now time.Time

	Tenants       *tenantrepofakes.FakeTenantRepo
	Clients       *clientrepofakes.FakeClientRepo
	Connections   *connectionrepofakes.FakeConnectionRepo
	Users         *userrepofakes.FakeUserRepo
	Passwords     *userrepofakes.FakePasswordRepo
	Permissions   *resourceserverrepofakes.FakePermissionRepo
	LoginSessions *loginsessions.InMemoryLoginSessionRepo
	Sessions      *sessions.InMemorySessionRepo
	Codes         *codes.InMemoryCodeRepo

	Gate     *Gate
	Upstream *Upstream
	Forms    *hooks.InMemoryFormRepo
	Notifier *notify.Recorder
	Audit    *audit.MemorySink
	Tokens   *token.Manager
	Tenant   *tenants.Tenant
	Service  *auth.AuthorizationService
}

// New creates a tenant with email, sms, password and oidc connections and a public SPA client
// using all of them.
func New(t *testing.T, options ...auth.AuthorizationServiceOption) *Fixture {
	t.Helper()

	f := &Fixture{
		Now:         time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Tenants:     tenantrepofakes.NewFakeTenantRepo(),
		Clients:     clientrepofakes.NewFakeClientRepo(),
		Connections: connectionrepofakes.NewFakeConnectionRepo(),
		Users:       userrepofakes.NewFakeUserRepo(),
		Passwords:   userrepofakes.NewFakePasswordRepo(),
		Permissions: resourceserverrepofakes.NewFakePermissionRepo(),
		Sessions:    sessions.NewInMemorySessionRepo(),
		Gate:        &Gate{},
		Upstream: &Upstream{Identity: auth.UpstreamIdentity{
			Subject: "upstream-1", Email: "jane@example.com", EmailVerified: true, Name: "Jane",
		}},
		Forms:    hooks.NewInMemoryFormRepo(),
		Notifier: notify.NewRecorder(),
		Audit:    audit.NewMemorySink(),
	}
	now := func() time.Time { return f.Now }
	f.LoginSessions = loginsessions.NewInMemoryLoginSessionRepo(now)
	f.Codes = codes.NewInMemoryCodeRepo(now)
	f.Tokens = token.New(token.WithNowFunc(now))

	ctx := context.Background()
	f.Tenant = &tenants.Tenant{
		ID:                 TenantID,
		Name:               "Acme",
		Issuer:             Issuer,
		ManagementAudience: ManagementAudience,
		SignerType:         tenants.SignerTypeHMAC,
		HMACSecret:         "secret-for-acme",
	}
	require.NoError(t, f.Tenants.Upsert(ctx, f.Tenant))

	for _, conn := range []*connections.Connection{
		{ID: "con_email", TenantID: TenantID, Name: "email", Strategy: connections.StrategyEmail},
		{ID: "con_sms", TenantID: TenantID, Name: "sms", Strategy: connections.StrategySMS},
		{ID: "con_pwd", TenantID: TenantID, Name: PasswordConnection, Strategy: connections.StrategyPassword},
		{ID: "con_google", TenantID: TenantID, Name: "google", DisplayName: "Google", Strategy: connections.StrategyOIDC, Options: connections.Options{
			Issuer: "https://accounts.example.com", ClientID: "upstream-client",
		}},
	} {
		require.NoError(t, f.Connections.Upsert(ctx, conn))
	}
	require.NoError(t, f.Clients.Upsert(ctx, &clients.Client{
		ID:                ClientID,
		TenantID:          TenantID,
		Name:              "SPA",
		Type:              clients.ClientTypePublic,
		RedirectURIs:      []string{RedirectURI},
		AllowedLogoutURLs: []string{LogoutURL},
		WebOrigins:        []string{Origin},
		Connections:       []string{"email", "sms", PasswordConnection, "google"},
	}))

	opts := []auth.AuthorizationServiceOption{
		auth.WithNowTime(now),
		auth.WithLogger(zerolog.Nop()),
		auth.WithSecureCookies(false),
		auth.WithHooks(f.Gate, f.Forms),
		auth.WithUpstreamProvider(f.Upstream),
		auth.WithNotifier(f.Notifier),
		auth.WithAuditSink(f.Audit),
		auth.WithCleanupRunner(func(run func()) { run() }),
	}
	service, err := auth.NewAuthorizationService(auth.Repos{
		Tenants:         f.Tenants,
		Clients:         f.Clients,
		Connections:     f.Connections,
		Users:           f.Users,
		Passwords:       f.Passwords,
		Organizations:   organizationrepofakes.NewFakeOrganizationRepo(),
		ResourceServers: resourceserverrepofakes.NewFakeResourceServerRepo(),
		Permissions:     f.Permissions,
		ClientGrants:    resourceserverrepofakes.NewFakeClientGrantRepo(),
		LoginSessions:   f.LoginSessions,
		Sessions:        f.Sessions,
		RefreshTokens:   refresh.NewInMemoryRefreshTokenRepo(),
		Codes:           f.Codes,
	}, f.Tokens, append(opts, options...)...)
	require.NoError(t, err)
	f.Service = service
	return f
}

func (f *Fixture) Advance(d time.Duration) {
	f.Now = f.Now.Add(d)
}

// CodeParams is a PKCE authorization code request of the SPA client.
func CodeParams() oauthmodel.AuthorizationParameters {
	return oauthmodel.AuthorizationParameters{
		TenantID:            TenantID,
		ClientID:            ClientID,
		ResponseType:        oauthmodel.CodeResponseType,
		RedirectURI:         RedirectURI,
		Scope:               "openid profile email",
		State:               State,
		Nonce:               Nonce,
		CodeChallenge:       CodeChallenge,
		CodeChallengeMethod: oauthmodel.CodeMethodTypeS256,
	}
}

// Authorize starts a login and returns its login session.
func (f *Fixture) Authorize(t *testing.T, params oauthmodel.AuthorizationParameters) *loginsessions.LoginSession {
	t.Helper()
	res := f.Service.Authorize(context.Background(), params, auth.RequestInfo{IP: "10.0.0.1"})
	require.Equal(t, auth.ResultRedirect, res.Kind, "unexpected result: %+v", res)
	require.True(t, strings.HasPrefix(res.URL, "/u/"), res.URL)
	u, err := url.Parse(res.URL)
	require.NoError(t, err)
	return f.LoginSession(t, u.Query().Get("state"))
}

func (f *Fixture) LoginSession(t *testing.T, state string) *loginsessions.LoginSession {
	t.Helper()
	ls, err := f.Service.LoginSession(context.Background(), TenantID, state)
	require.NoError(t, err)
	return ls
}

func (f *Fixture) CreatePasswordUser(t *testing.T, email, password string) *users.User {
	t.Helper()
	ctx := context.Background()
	user := &users.User{
		TenantID:      TenantID,
		Provider:      connections.ProviderPassword,
		Connection:    PasswordConnection,
		Email:         email,
		EmailVerified: true,
		CreatedAt:     f.Now,
		UpdatedAt:     f.Now,
	}
	require.NoError(t, f.Users.Create(ctx, user))
	hash, err := users.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, f.Passwords.Create(ctx, &users.Password{TenantID: TenantID, UserID: user.ID, Hash: hash, CreatedAt: f.Now}))
	return user
}

func (f *Fixture) User(t *testing.T, id string) *users.User {
	t.Helper()
	u, err := f.Users.Get(context.Background(), TenantID, id)
	require.NoError(t, err)
	return u
}
