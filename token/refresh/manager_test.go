package refresh_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/token/refresh"
	"github.com/stretchr/testify/require"
)

func TestCreateUseAndIdleSlide(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := refresh.NewInMemoryRefreshTokenRepo()
	m := refresh.NewManager(repo,
		refresh.WithNowFunc(func() time.Time { return now }),
		refresh.WithLifetimes(10*24*time.Hour, 24*time.Hour),
	)

	rt, err := m.Create(ctx, refresh.RefreshToken{TenantID: "t1", ClientID: "c1", UserID: "u1", SessionID: "s1", Scope: "openid offline_access"})
	require.NoError(t, err)
	require.Len(t, rt.ID, 64)

	now = now.Add(20 * time.Hour)
	used, err := m.Use(ctx, "t1", rt.ID)
	require.NoError(t, err)
	require.Equal(t, now.Add(24*time.Hour), used.IdleExpiresAt)

	active, err := repo.HasActiveForSession(ctx, "t1", "s1", now.Add(30*time.Hour))
	require.NoError(t, err)
	require.True(t, active)

	now = now.Add(25 * time.Hour)
	_, err = m.Use(ctx, "t1", rt.ID)
	require.ErrorIs(t, err, refresh.ErrRefreshTokenInactive)

	expired, err := repo.ListExpired(ctx, refresh.CleanupFilter{Before: now, Limit: 100})
	require.NoError(t, err)
	require.Len(t, expired, 1)
}

func TestRevokedTokenIsInactive(t *testing.T) {
	ctx := context.Background()
	m := refresh.NewManager(refresh.NewInMemoryRefreshTokenRepo())
	rt, err := m.Create(ctx, refresh.RefreshToken{TenantID: "t1", ClientID: "c1", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, "t1", rt.ID))
	_, err = m.Use(ctx, "t1", rt.ID)
	require.ErrorIs(t, err, refresh.ErrRefreshTokenInactive)

	_, err = m.Use(ctx, "t2", rt.ID)
	require.ErrorIs(t, err, refresh.ErrRefreshTokenNotFound)
}
