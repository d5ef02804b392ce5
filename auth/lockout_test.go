package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/connections"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/users"
	userrepofakes "github.com/jrsteele09/go-auth-engine/users/repofakes"
	"github.com/stretchr/testify/require"
)

func TestPasswordLogin(t *testing.T) {
	f := setupTestFixture(t)
	user := f.createPasswordUser(t, testUserEmail, testUserPassword)

	_, res := f.passwordLogin(t, codeParams(), testUserEmail, testUserPassword)
	code := redirectQuery(t, res).Get("code")
	require.NotEmpty(t, code)

	resp := f.exchange(t, code)
	claims, err := f.tokens.Verify(f.tenant, resp.IDToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims["sub"])
	require.Equal(t, testNonce, claims["nonce"])
}

func TestWrongPasswordRendersFieldError(t *testing.T) {
	f := setupTestFixture(t)
	f.createPasswordUser(t, testUserEmail, testUserPassword)

	_, res := f.passwordLogin(t, codeParams(), testUserEmail, "Wrong12345")
	require.Equal(t, auth.ResultContinue, res.Kind)
	require.Equal(t, auth.ScreenEnterPassword, res.Screen)
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidCredentials)
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(res.Err))
}

func TestUnknownUserGetsSameErrorAsWrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	ls := f.authorize(t, codeParams())
	ls.AuthParams.Username = "ghost@example.com"
	res := f.service.VerifyPassword(ctx, ls, "Whatever1", auth.RequestInfo{})
	require.Equal(t, auth.ScreenEnterPassword, res.Screen)
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidCredentials)
}

func TestLockoutRejectsCorrectPasswordAfterThreeFailures(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	user := f.createPasswordUser(t, testUserEmail, testUserPassword)

	ls, res := f.passwordLogin(t, codeParams(), testUserEmail, "Wrong12345")
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidCredentials)
	for i := 0; i < auth.LockoutThreshold-1; i++ {
		f.advance(time.Second)
		res = f.service.VerifyPassword(ctx, ls, "Wrong12345", auth.RequestInfo{})
		require.ErrorIs(t, res.Err, apperrors.ErrInvalidCredentials)
	}
	require.Len(t, f.user(t, user.ID).AppMetadata.FailedLogins, auth.LockoutThreshold)

	res = f.service.VerifyPassword(ctx, ls, testUserPassword, auth.RequestInfo{})
	require.Equal(t, auth.ResultContinue, res.Kind)
	require.Equal(t, apperrors.KindLockedOut, apperrors.KindOf(res.Err))
	require.Len(t, f.audit.OfType(audit.EventLockedOut), 1)
	require.Len(t, f.audit.OfType(audit.EventLoginFailed), auth.LockoutThreshold)

	f.advance(auth.LockoutWindow)
	res = f.service.VerifyPassword(ctx, ls, testUserPassword, auth.RequestInfo{})
	require.NotEmpty(t, redirectQuery(t, res).Get("code"))
}

func TestFailuresOutsideWindowAreForgotten(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	user := f.createPasswordUser(t, testUserEmail, testUserPassword)

	ls, res := f.passwordLogin(t, codeParams(), testUserEmail, "Wrong12345")
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidCredentials)
	require.Len(t, f.user(t, user.ID).AppMetadata.FailedLogins, 1)

	f.advance(6 * time.Minute)
	res = f.service.VerifyPassword(ctx, ls, testUserPassword, auth.RequestInfo{})
	require.NotEmpty(t, redirectQuery(t, res).Get("code"))

	stored := f.user(t, user.ID)
	require.Empty(t, stored.AppMetadata.FailedLogins)
	require.Equal(t, 1, stored.LoginCount)
	require.NotNil(t, stored.LastLogin)
}

func TestLinkedIdentityFailuresCountOnPrimary(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	primary := &users.User{
		TenantID:      testTenantID,
		Provider:      connections.ProviderSMS,
		Connection:    "sms",
		PhoneNumber:   "+16502530000",
		PhoneVerified: true,
	}
	require.NoError(t, f.users.Create(ctx, primary))
	linked := f.createPasswordUser(t, testUserEmail, testUserPassword)
	linked.LinkedTo = primary.ID
	require.NoError(t, f.users.Update(ctx, linked))

	ls, res := f.passwordLogin(t, codeParams(), testUserEmail, "Wrong12345")
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidCredentials)

	require.Len(t, f.user(t, primary.ID).AppMetadata.FailedLogins, 1)
	require.Empty(t, f.user(t, linked.ID).AppMetadata.FailedLogins)

	failed := f.audit.OfType(audit.EventLoginFailed)
	require.Len(t, failed, 1)
	require.Equal(t, primary.ID, failed[0].UserID)
	require.Equal(t, linked.ID, failed[0].Metadata["identity"])

	res = f.service.VerifyPassword(ctx, ls, testUserPassword, auth.RequestInfo{})
	code := redirectQuery(t, res).Get("code")
	resp := f.exchange(t, code)
	claims, err := f.tokens.Verify(f.tenant, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, primary.ID, claims["sub"])
	require.Empty(t, f.user(t, primary.ID).AppMetadata.FailedLogins)
}

func TestBlockedUserIsDenied(t *testing.T) {
	f := setupTestFixture(t)
	user := f.createPasswordUser(t, testUserEmail, testUserPassword)
	user.Blocked = true
	require.NoError(t, f.users.Update(context.Background(), user))

	_, res := f.passwordLogin(t, codeParams(), testUserEmail, testUserPassword)
	q := redirectQuery(t, res)
	require.Equal(t, auth.CodeAccessDenied, q.Get("error"))
	require.ErrorIs(t, res.Err, apperrors.ErrUserBlocked)
}

func TestLockoutTrackerPrunesOldFailures(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := userrepofakes.NewFakeUserRepo()
	tracker := auth.NewLockoutTracker(repo, func() time.Time { return now })
	user := &users.User{ID: "auth2|1", TenantID: testTenantID, Provider: connections.ProviderPassword}
	require.NoError(t, repo.Create(context.Background(), user))
	user.AppMetadata.FailedLogins = []int64{
		now.Add(-10 * time.Minute).UnixMilli(),
		now.Add(-4 * time.Minute).UnixMilli(),
		now.Add(-time.Minute).UnixMilli(),
	}
	require.False(t, tracker.IsLockedOut(user))

	n, err := tracker.RecordFailure(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, tracker.IsLockedOut(user))

	require.NoError(t, tracker.Clear(context.Background(), user))
	require.False(t, tracker.IsLockedOut(user))
}
