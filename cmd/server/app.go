package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/auth"
	clientrepofakes "github.com/jrsteele09/go-auth-engine/clients/repofakes"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/codes/redisrepo"
	connectionrepofakes "github.com/jrsteele09/go-auth-engine/connections/repofakes"
	"github.com/jrsteele09/go-auth-engine/hooks"
	"github.com/jrsteele09/go-auth-engine/internal/cache"
	"github.com/jrsteele09/go-auth-engine/internal/config"
	"github.com/jrsteele09/go-auth-engine/internal/metrics"
	"github.com/jrsteele09/go-auth-engine/internal/seed"
	"github.com/jrsteele09/go-auth-engine/internal/store/sqlite"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/notify"
	organizationrepofakes "github.com/jrsteele09/go-auth-engine/organizations/repofakes"
	resourceserverrepofakes "github.com/jrsteele09/go-auth-engine/resourceservers/repofakes"
	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/jrsteele09/go-auth-engine/tenants"
	tenantrepofakes "github.com/jrsteele09/go-auth-engine/tenants/repofakes"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/token/refresh"
	userrepofakes "github.com/jrsteele09/go-auth-engine/users/repofakes"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const notifyTimeout = 30 * time.Second

// app is everything a command needs: the engine plus the resources to release on exit.
type app struct {
	auth     *auth.AuthorizationService
	repos    auth.Repos
	metrics  *metrics.Metrics
	notifier *notify.Async
	closers  []func() error
}

func (a *app) Close() {
	if a.notifier != nil {
		a.notifier.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to release resource")
		}
	}
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	a := &app{metrics: metrics.New()}

	metaCache := cache.New(c.GetCacheTTL())
	repos := auth.Repos{
		Tenants:         cache.NewTenantRepo(tenantrepofakes.NewFakeTenantRepo(), metaCache),
		Clients:         cache.NewClientRepo(clientrepofakes.NewFakeClientRepo(), metaCache),
		Connections:     cache.NewConnectionRepo(connectionrepofakes.NewFakeConnectionRepo(), metaCache),
		Users:           userrepofakes.NewFakeUserRepo(),
		Passwords:       userrepofakes.NewFakePasswordRepo(),
		Organizations:   organizationrepofakes.NewFakeOrganizationRepo(),
		ResourceServers: resourceserverrepofakes.NewFakeResourceServerRepo(),
		Permissions:     resourceserverrepofakes.NewFakePermissionRepo(),
		ClientGrants:    resourceserverrepofakes.NewFakeClientGrantRepo(),
	}

	if err := a.openSessionStores(c, &repos); err != nil {
		a.Close()
		return nil, err
	}

	forms := hooks.NewInMemoryFormRepo()
	gate := hooks.NewRulesGate(forms)
	if err := loadTenants(ctx, c, repos, forms, gate); err != nil {
		a.Close()
		return nil, err
	}

	logNotifier := notify.NewLogNotifier(&log.Logger)
	var delivery notify.Notifier = logNotifier
	if c.GetSmtpHost() != "" {
		delivery = notify.NewSMTPNotifier(c, logNotifier)
	}
	a.notifier = notify.NewAsync(delivery, notifyTimeout)

	tokens := token.New(token.WithTokenExpiry(c.GetDefaultAccessTokenExpiry(), c.GetDefaultIDTokenExpiry()))
	svc, err := auth.NewAuthorizationService(repos, tokens,
		auth.WithLogger(log.Logger),
		auth.WithBaseURL(c.GetBaseURL()),
		auth.WithSecureCookies(strings.HasPrefix(c.GetBaseURL(), "https://")),
		auth.WithHooks(gate, forms),
		auth.WithNotifier(a.notifier),
		auth.WithAuditSink(audit.NewLogSink(&log.Logger)),
		auth.WithMetrics(a.metrics),
		auth.WithUpstreamProvider(auth.NewOIDCUpstream()),
		auth.WithCodeOptions(
			codes.WithLifetime(codes.TypeOTP, c.GetOTPLifetime()),
			codes.WithLifetime(codes.TypeAuthorizationCode, c.GetAuthCodeLifetime()),
		),
		auth.WithRefreshOptions(refresh.WithLifetimes(c.GetDefaultRefreshTokenExpiry(), 0)),
		auth.WithCleanupBatchSize(c.GetCleanupBatchSize()),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("auth.NewAuthorizationService: %w", err)
	}
	a.auth = svc
	a.repos = repos
	return a, nil
}

// openSessionStores picks the backends of the session family and of one-time codes.
func (a *app) openSessionStores(c config.Config, repos *auth.Repos) error {
	var store *sqlite.Store
	switch c.GetStore() {
	case config.StoreSQLite:
		s, err := sqlite.NewStore(c.GetSQLiteDSN())
		if err != nil {
			return fmt.Errorf("sqlite.NewStore: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		if err := s.ApplyMigrations(); err != nil {
			return fmt.Errorf("sqlite migrations: %w", err)
		}
		store = s
		repos.LoginSessions = s.LoginSessions()
		repos.Sessions = s.Sessions()
		repos.RefreshTokens = s.RefreshTokens()
		log.Info().Str("dsn", c.GetSQLiteDSN()).Msg("Using sqlite store")
	case config.StoreMemory:
		repos.LoginSessions = loginsessions.NewInMemoryLoginSessionRepo(time.Now)
		repos.Sessions = sessions.NewInMemorySessionRepo()
		repos.RefreshTokens = refresh.NewInMemoryRefreshTokenRepo()
	default:
		return fmt.Errorf("unknown STORE %q", c.GetStore())
	}

	switch c.GetCodeStore() {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr(), DB: c.GetRedisDB()})
		a.closers = append(a.closers, client.Close)
		repos.Codes = redisrepo.New(client)
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis code store")
	case config.StoreSQLite:
		if store == nil {
			return fmt.Errorf("CODE_STORE=%s requires STORE=%s", config.StoreSQLite, config.StoreSQLite)
		}
		repos.Codes = store.Codes()
	case config.StoreMemory:
		repos.Codes = codes.NewInMemoryCodeRepo(time.Now)
	default:
		return fmt.Errorf("unknown CODE_STORE %q", c.GetCodeStore())
	}
	return nil
}

// loadTenants applies the seed file, or creates an empty default tenant when there is none.
func loadTenants(ctx context.Context, c config.Config, repos auth.Repos, forms hooks.FormRepo, gate *hooks.RulesGate) error {
	path := c.GetSeedFile()
	if path == "" {
		tenant := &tenants.Tenant{
			ID:                   c.GetDefaultTenantID(),
			Name:                 c.GetAppName(),
			LoginSessionLifetime: c.GetLoginSessionLifetime(),
		}
		if _, err := token.EnsureTenantKeys(tenant); err != nil {
			return fmt.Errorf("default tenant keys: %w", err)
		}
		log.Warn().Str("tenant_id", tenant.ID).Msg("No SEED_FILE set, starting with an empty default tenant")
		return repos.Tenants.Upsert(ctx, tenant)
	}

	f, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	for i := range f.Tenants {
		if f.Tenants[i].LoginSessionLifetime == 0 {
			f.Tenants[i].LoginSessionLifetime = c.GetLoginSessionLifetime()
		}
	}
	err = seed.Apply(ctx, f, seed.Targets{
		Tenants:         repos.Tenants,
		Clients:         repos.Clients,
		Connections:     repos.Connections,
		Users:           repos.Users,
		Passwords:       repos.Passwords,
		Organizations:   repos.Organizations,
		ResourceServers: repos.ResourceServers,
		Permissions:     repos.Permissions,
		ClientGrants:    repos.ClientGrants,
		Forms:           forms,
		Gate:            gate,
	})
	if err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}
	log.Info().Str("file", path).Int("tenants", len(f.Tenants)).Msg("Seed applied")
	return nil
}
