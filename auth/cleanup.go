package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/jrsteele09/go-auth-engine/token/refresh"
)

// CleanupFilter scopes a cleanup run. Empty fields match everything.
type CleanupFilter struct {
	TenantID string
	UserID   string
}

// CleanupStats counts what a cleanup run deleted and how many store calls failed.
type CleanupStats struct {
	LoginSessions int
	RefreshTokens int
	Sessions      int
	Codes         int
	Errors        int
}

// Cleanup deletes expired login sessions, refresh tokens, sessions and codes, at most one batch
// of each. Rows still referenced by something active are kept and skipped over. Store errors are
// logged and counted, never returned.
func (as *AuthorizationService) Cleanup(ctx context.Context, filter CleanupFilter) CleanupStats {
	var stats CleanupStats
	now := as.nowTime()
	logger := as.logger.With().Str("tenant_id", filter.TenantID).Str("user_id", filter.UserID).Logger()
	fail := func(kind string, err error, msg string) {
		stats.Errors++
		as.metrics.CleanupError(kind)
		logger.Error().Err(err).Str("kind", kind).Msg(msg)
	}

	stats.LoginSessions = sweep(as.cleanupBatchSize,
		func(offset int) ([]*loginsessions.LoginSession, error) {
			return as.repos.LoginSessions.ListExpired(ctx, loginsessions.CleanupFilter{
				TenantID: filter.TenantID, UserID: filter.UserID, Before: now, Limit: as.cleanupBatchSize, Offset: offset,
			})
		},
		func(ls *loginsessions.LoginSession) (bool, error) {
			return as.repos.Sessions.HasActiveForLoginSession(ctx, ls.TenantID, ls.ID, now)
		},
		func(ls *loginsessions.LoginSession) error {
			return as.repos.LoginSessions.Remove(ctx, ls.TenantID, ls.ID)
		},
		func(err error) { fail("login_session", err, "cleaning up login sessions") },
	)

	stats.RefreshTokens = sweep(as.cleanupBatchSize,
		func(offset int) ([]*refresh.RefreshToken, error) {
			return as.repos.RefreshTokens.ListExpired(ctx, refresh.CleanupFilter{
				TenantID: filter.TenantID, UserID: filter.UserID, Before: now, Limit: as.cleanupBatchSize, Offset: offset,
			})
		},
		nil,
		func(rt *refresh.RefreshToken) error {
			return as.repos.RefreshTokens.Remove(ctx, rt.TenantID, rt.ID)
		},
		func(err error) { fail("refresh_token", err, "cleaning up refresh tokens") },
	)

	stats.Sessions = sweep(as.cleanupBatchSize,
		func(offset int) ([]*sessions.Session, error) {
			return as.repos.Sessions.ListExpired(ctx, sessions.CleanupFilter{
				TenantID: filter.TenantID, UserID: filter.UserID, Before: now, Limit: as.cleanupBatchSize, Offset: offset,
			})
		},
		func(s *sessions.Session) (bool, error) {
			return as.repos.RefreshTokens.HasActiveForSession(ctx, s.TenantID, s.ID, now)
		},
		func(s *sessions.Session) error {
			return as.repos.Sessions.Remove(ctx, s.TenantID, s.ID)
		},
		func(err error) { fail("session", err, "cleaning up sessions") },
	)

	n, err := as.repos.Codes.RemoveExpired(ctx, codes.CleanupFilter{
		TenantID: filter.TenantID, UserID: filter.UserID, Before: now, Limit: as.cleanupBatchSize,
	})
	if err != nil {
		fail("code", err, "removing expired codes")
	}
	stats.Codes = n

	as.metrics.CleanupDeleted("login_session", stats.LoginSessions)
	as.metrics.CleanupDeleted("refresh_token", stats.RefreshTokens)
	as.metrics.CleanupDeleted("session", stats.Sessions)
	as.metrics.CleanupDeleted("code", stats.Codes)
	logger.Debug().
		Int("login_sessions", stats.LoginSessions).
		Int("refresh_tokens", stats.RefreshTokens).
		Int("sessions", stats.Sessions).
		Int("codes", stats.Codes).
		Int("errors", stats.Errors).
		Msg("cleanup finished")
	return stats
}

// sweep removes up to limit expired rows, paging through the list in expiry order. Rows that
// keep reports as still referenced, or that failed, stay in place and the next page starts
// after them, so they never stall the rows behind them. A nil keep removes every row listed.
func sweep[T any](limit int, list func(offset int) ([]T, error), keep func(T) (bool, error),
	remove func(T) error, fail func(error)) int {
	removed, skipped := 0, 0
	for {
		page, err := list(skipped)
		if err != nil {
			fail(err)
			return removed
		}
		for _, row := range page {
			if keep != nil {
				kept, err := keep(row)
				if err != nil {
					fail(err)
				}
				if kept || err != nil {
					skipped++
					continue
				}
			}
			if err := remove(row); err != nil {
				fail(err)
				skipped++
				continue
			}
			removed++
			if removed >= limit {
				return removed
			}
		}
		if len(page) < limit {
			return removed
		}
	}
}

// triggerCleanup runs a tenant scoped cleanup unless one is already running.
func (as *AuthorizationService) triggerCleanup(tenantID string) {
	if !as.cleanupRunning.CompareAndSwap(false, true) {
		return
	}
	as.runCleanup(func() {
		defer as.cleanupRunning.Store(false)
		as.Cleanup(context.Background(), CleanupFilter{TenantID: tenantID})
	})
}
