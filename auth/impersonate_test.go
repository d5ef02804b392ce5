package auth_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/auth"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/resourceservers"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/stretchr/testify/require"
)

const adminEmail = "admin@example.com"

// adminSession logs the admin in and returns the admin and the session id.
func (f *testFixture) adminSession(t *testing.T, canImpersonate bool) (*users.User, string) {
	t.Helper()
	admin := f.createPasswordUser(t, adminEmail, testUserPassword)
	if canImpersonate {
		require.NoError(t, f.permissions.Add(context.Background(), &resourceservers.UserPermission{
			TenantID:                 testTenantID,
			UserID:                   admin.ID,
			ResourceServerIdentifier: testManagementAudience,
			Permission:               auth.ImpersonatePermission,
		}))
	}
	_, res := f.passwordLogin(t, codeParams(), adminEmail, testUserPassword)
	return admin, sessionCookie(t, res)
}

func TestImpersonationIssuesTokensWithActor(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	admin, sessionID := f.adminSession(t, true)
	target := f.createPasswordUser(t, testUserEmail, testUserPassword)

	ls := f.authorize(t, codeParams())
	actor, err := f.service.Impersonator(ctx, ls, auth.RequestInfo{SessionID: sessionID})
	require.NoError(t, err)
	require.Equal(t, admin.ID, actor.ID)

	res := f.service.Impersonate(ctx, ls, " "+testUserEmail+" ", auth.RequestInfo{SessionID: sessionID, IP: "10.0.0.9"})
	resp := f.exchange(t, redirectQuery(t, res).Get("code"))

	claims, err := f.tokens.Verify(f.tenant, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, target.ID, claims["sub"])
	require.Equal(t, map[string]any{"sub": admin.ID}, claims["act"])

	events := f.audit.OfType(audit.EventImpersonation)
	require.Len(t, events, 1)
	require.True(t, events[0].Success)
	require.Equal(t, target.ID, events[0].UserID)
	require.Equal(t, admin.ID, events[0].Metadata["actor"])
	require.Equal(t, 1, f.gate.postLoginCalls)
}

func TestImpersonationDeniedWithoutPermission(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	admin, sessionID := f.adminSession(t, false)
	f.createPasswordUser(t, testUserEmail, testUserPassword)

	ls := f.authorize(t, codeParams())
	actor, err := f.service.Impersonator(ctx, ls, auth.RequestInfo{SessionID: sessionID})
	require.Equal(t, apperrors.KindAuthorizationDenied, apperrors.KindOf(err))
	require.Equal(t, admin.ID, actor.ID)

	res := f.service.Impersonate(ctx, ls, testUserEmail, auth.RequestInfo{SessionID: sessionID})
	require.Equal(t, auth.ResultContinue, res.Kind)
	require.Equal(t, auth.ScreenImpersonate, res.Screen)
	require.Equal(t, apperrors.KindAuthorizationDenied, apperrors.KindOf(res.Err))

	denied := f.audit.OfType(audit.EventImpersonationDenied)
	require.Len(t, denied, 1)
	require.False(t, denied[0].Success)
	require.Equal(t, admin.ID, denied[0].Metadata["actor"])
	require.Equal(t, testUserEmail, denied[0].Metadata["target"])
	require.Empty(t, f.audit.OfType(audit.EventImpersonation))
}

func TestImpersonationRequiresSession(t *testing.T) {
	f := setupTestFixture(t)
	ls := f.authorize(t, codeParams())

	res := f.service.Impersonate(context.Background(), ls, testUserEmail, auth.RequestInfo{SessionID: "missing"})
	require.Equal(t, auth.ScreenImpersonate, res.Screen)
	require.Error(t, res.Err)
	require.Len(t, f.audit.OfType(audit.EventImpersonationDenied), 1)
}

func TestImpersonationUnknownTargetIsFieldError(t *testing.T) {
	f := setupTestFixture(t)
	_, sessionID := f.adminSession(t, true)
	ls := f.authorize(t, codeParams())

	res := f.service.Impersonate(context.Background(), ls, "nobody@example.com", auth.RequestInfo{SessionID: sessionID})
	require.Equal(t, auth.ScreenImpersonate, res.Screen)
	var e *apperrors.Error
	require.True(t, apperrors.As(res.Err, &e))
	require.Equal(t, "user", e.Field)
	require.Len(t, f.audit.OfType(audit.EventImpersonationDenied), 1)
}
