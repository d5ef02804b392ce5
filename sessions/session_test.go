package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newSession(id string, expires, idle time.Duration) *sessions.Session {
	return &sessions.Session{
		ID:             id,
		TenantID:       "tenant-1",
		UserID:         "user-1",
		LoginSessionID: "ls-" + id,
		Clients:        []string{"client-1"},
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
		ExpiresAt:      testNow.Add(expires),
		IdleExpiresAt:  testNow.Add(idle),
	}
}

func TestIsActive(t *testing.T) {
	s := newSession("s1", 24*time.Hour, time.Hour)
	require.True(t, s.IsActive(testNow))
	require.False(t, s.IsActive(testNow.Add(2*time.Hour)), "idle expiry")

	s.Touch(testNow.Add(50*time.Minute), time.Hour, "10.0.0.2", "agent-2")
	require.True(t, s.IsActive(testNow.Add(90*time.Minute)))
	require.Equal(t, "10.0.0.2", s.Device.LastIP)

	revoked := testNow
	s.RevokedAt = &revoked
	require.False(t, s.IsActive(testNow))
}

func TestAddClientIsUnique(t *testing.T) {
	s := newSession("s1", time.Hour, time.Hour)
	s.AddClient("client-1")
	s.AddClient("client-2")
	require.Equal(t, []string{"client-1", "client-2"}, s.Clients)
}

func TestRepoListExpiredAndLoginSessionLink(t *testing.T) {
	ctx := context.Background()
	repo := sessions.NewInMemorySessionRepo()
	require.NoError(t, repo.Create(ctx, newSession("old", time.Hour, 10*time.Minute)))
	require.NoError(t, repo.Create(ctx, newSession("fresh", 24*time.Hour, 3*time.Hour)))

	active, err := repo.HasActiveForLoginSession(ctx, "tenant-1", "ls-old", testNow)
	require.NoError(t, err)
	require.True(t, active)

	later := testNow.Add(time.Hour)
	active, err = repo.HasActiveForLoginSession(ctx, "tenant-1", "ls-old", later)
	require.NoError(t, err)
	require.False(t, active)

	expired, err := repo.ListExpired(ctx, sessions.CleanupFilter{Before: later, Limit: 10})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, "old", expired[0].ID)

	require.NoError(t, repo.Remove(ctx, "tenant-1", "old"))
	_, err = repo.Get(ctx, "tenant-1", "old")
	require.ErrorIs(t, err, sessions.ErrSessionNotFound)

	list, err := repo.ListForUser(ctx, "tenant-1", "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
