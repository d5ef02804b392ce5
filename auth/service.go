package auth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/connections"
	"github.com/jrsteele09/go-auth-engine/hooks"
	"github.com/jrsteele09/go-auth-engine/internal/metrics"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/notify"
	"github.com/jrsteele09/go-auth-engine/organizations"
	"github.com/jrsteele09/go-auth-engine/resourceservers"
	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/token/refresh"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCleanupBatchSize caps each cleanup pass.
const DefaultCleanupBatchSize = 100

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Tenants         tenants.Repo
	Clients         clients.Repo
	Connections     connections.Repo
	Users           users.UserRepo
	Passwords       users.PasswordRepo
	Organizations   organizations.Repo
	ResourceServers resourceservers.Repo
	Permissions     resourceservers.PermissionRepo
	ClientGrants    resourceservers.ClientGrantRepo
	LoginSessions   loginsessions.Repo
	Sessions        sessions.Repo
	RefreshTokens   refresh.Repo
	Codes           codes.Repo
}

// RequestInfo is what the engine needs to know about the HTTP request driving a flow step.
type RequestInfo struct {
	IP        string
	UserAgent string
	// SessionID is the value of the session cookie, if any.
	SessionID string
	Origin    string
}

// AuthorizationService runs the login flows of every tenant.
type AuthorizationService struct {
	repos         Repos
	loginSessions *loginsessions.Manager
	codes         *codes.Issuer
	refresh       *refresh.Manager
	tokens        *token.Manager
	lockout       *LockoutTracker
	upstream      UpstreamProvider

	gate     hooks.Gate
	forms    hooks.FormRepo
	notifier notify.Notifier
	audit    audit.Sink
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	nowTime       func() time.Time
	baseURL       string
	secureCookies bool

	codeOptions    []codes.IssuerOption
	refreshOptions []refresh.ManagerOption

	cleanupBatchSize int
	cleanupRunning   atomic.Bool
	runCleanup       func(func())
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.logger = logger
	}
}

// WithBaseURL sets the absolute URL used for links when a tenant has no issuer configured.
func WithBaseURL(baseURL string) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.baseURL = baseURL
	}
}

func WithSecureCookies(secure bool) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.secureCookies = secure
	}
}

func WithHooks(gate hooks.Gate, forms hooks.FormRepo) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		if gate != nil {
			as.gate = gate
		}
		if forms != nil {
			as.forms = forms
		}
	}
}

func WithNotifier(n notify.Notifier) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.notifier = n
	}
}

func WithAuditSink(sink audit.Sink) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.audit = sink
	}
}

func WithMetrics(m *metrics.Metrics) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.metrics = m
	}
}

func WithUpstreamProvider(p UpstreamProvider) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.upstream = p
	}
}

// WithCodeOptions passes options such as lifetimes and generators to the code issuer.
func WithCodeOptions(options ...codes.IssuerOption) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.codeOptions = append(as.codeOptions, options...)
	}
}

func WithRefreshOptions(options ...refresh.ManagerOption) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.refreshOptions = append(as.refreshOptions, options...)
	}
}

func WithCleanupBatchSize(n int) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		if n > 0 {
			as.cleanupBatchSize = n
		}
	}
}

// WithCleanupRunner replaces the function used to run lazy cleanup. The default runs it on
// a new goroutine.
func WithCleanupRunner(run func(func())) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.runCleanup = run
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(repos Repos, tokens *token.Manager, options ...AuthorizationServiceOption) (*AuthorizationService, error) {
	required := []struct {
		name string
		ok   bool
	}{
		{"Tenants", repos.Tenants != nil},
		{"Clients", repos.Clients != nil},
		{"Connections", repos.Connections != nil},
		{"Users", repos.Users != nil},
		{"Passwords", repos.Passwords != nil},
		{"Organizations", repos.Organizations != nil},
		{"ResourceServers", repos.ResourceServers != nil},
		{"Permissions", repos.Permissions != nil},
		{"ClientGrants", repos.ClientGrants != nil},
		{"LoginSessions", repos.LoginSessions != nil},
		{"Sessions", repos.Sessions != nil},
		{"RefreshTokens", repos.RefreshTokens != nil},
		{"Codes", repos.Codes != nil},
	}
	for _, r := range required {
		if !r.ok {
			return nil, errors.Errorf("[NewAuthorizationService] %s repo is required", r.name)
		}
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthorizationService] token manager is required")
	}

	as := &AuthorizationService{
		repos:            repos,
		tokens:           tokens,
		gate:             hooks.AllowAll{},
		forms:            hooks.NewInMemoryFormRepo(),
		logger:           log.Logger,
		nowTime:          time.Now,
		secureCookies:    true,
		cleanupBatchSize: DefaultCleanupBatchSize,
		runCleanup:       func(f func()) { go f() },
	}
	for _, opt := range options {
		opt(as)
	}

	if as.notifier == nil {
		as.notifier = notify.NewLogNotifier(&as.logger)
	}
	if as.audit == nil {
		as.audit = audit.NewLogSink(&as.logger)
	}
	if as.upstream == nil {
		as.upstream = NewOIDCUpstream()
	}

	now := func() time.Time { return as.nowTime() }
	as.loginSessions = loginsessions.NewManager(repos.LoginSessions, loginsessions.WithNowFunc(now))
	as.codes = codes.NewIssuer(repos.Codes, append([]codes.IssuerOption{codes.WithNowFunc(now)}, as.codeOptions...)...)
	as.refresh = refresh.NewManager(repos.RefreshTokens, append([]refresh.ManagerOption{refresh.WithNowFunc(now)}, as.refreshOptions...)...)
	as.lockout = NewLockoutTracker(repos.Users, now)
	return as, nil
}

// LoginSessions exposes the login session manager to the screen layer.
func (as *AuthorizationService) LoginSessions() *loginsessions.Manager {
	return as.loginSessions
}

func (as *AuthorizationService) Tokens() *token.Manager {
	return as.tokens
}

func (as *AuthorizationService) Repos() Repos {
	return as.repos
}

// Forms returns the repository of hook forms.
func (as *AuthorizationService) Forms() hooks.FormRepo {
	return as.forms
}

// LoginSession returns the unexpired login session for state.
func (as *AuthorizationService) LoginSession(ctx context.Context, tenantID, state string) (*loginsessions.LoginSession, error) {
	ls, err := as.loginSessions.Get(ctx, tenantID, state)
	if errors.Is(err, loginsessions.ErrLoginSessionNotFound) {
		return nil, errSessionExpired()
	}
	if err != nil {
		return nil, transient("[AuthorizationService.LoginSession] Get", err)
	}
	return ls, nil
}

func (as *AuthorizationService) tenant(ctx context.Context, tenantID string) (*tenants.Tenant, error) {
	t, err := as.repos.Tenants.Get(ctx, tenantID)
	if errors.Is(err, tenants.ErrTenantNotFound) {
		return nil, notFound("unknown tenant", err)
	}
	if err != nil {
		return nil, transient("[AuthorizationService.tenant] Get", err)
	}
	return t, nil
}

func (as *AuthorizationService) client(ctx context.Context, tenantID, clientID string) (*clients.Client, error) {
	c, err := as.repos.Clients.Get(ctx, tenantID, clientID)
	if errors.Is(err, clients.ErrClientNotFound) {
		return nil, invalidClient("unknown client")
	}
	if err != nil {
		return nil, transient("[AuthorizationService.client] Get", err)
	}
	return c, nil
}

func (as *AuthorizationService) emit(ctx context.Context, event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = as.nowTime()
	}
	as.audit.Emit(ctx, event)
}
