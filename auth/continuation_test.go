package auth_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-auth-engine/auth"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/stretchr/testify/require"
)

func TestAccountContinuationRoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	user := f.createPasswordUser(t, testUserEmail, testUserPassword)

	params := codeParams()
	params.ScreenHint = auth.ScreenHintAccount
	ls, res := f.passwordLogin(t, params, testUserEmail, testUserPassword)
	require.Equal(t, auth.ResultRedirect, res.Kind)
	require.Equal(t, auth.ScreenPath(auth.ScreenAccount, ls.ID), res.URL)

	stored := f.loginSession(t, ls.ID)
	require.Equal(t, loginsessions.StateAwaitingContinuation, stored.State)
	require.Equal(t, auth.ContinuePath(ls.ID), stored.StateData.ContinuationReturnURL)
	require.Equal(t, params.RedirectURI, stored.AuthParams.RedirectURI)

	got, err := f.service.ContinuationUser(ctx, ls, auth.ScreenAccount)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	_, err = f.service.ContinuationUser(ctx, ls, auth.ScreenImpersonate)
	require.Equal(t, apperrors.KindAuthorizationDenied, apperrors.KindOf(err))

	res = f.service.ChangeEmail(ctx, ls, "not-an-email")
	require.Equal(t, auth.ScreenChangeEmail, res.Screen)
	require.Error(t, res.Err)

	res = f.service.ChangeEmail(ctx, ls, " Jane.Doe@Example.com ")
	require.Equal(t, auth.ScreenPath(auth.ScreenAccount, ls.ID), res.URL)
	require.NotEmpty(t, res.Notice)
	changed := f.user(t, user.ID)
	require.Equal(t, "jane.doe@example.com", changed.Email)
	require.False(t, changed.EmailVerified)

	res = f.service.ResumeContinuation(ctx, ls, auth.RequestInfo{})
	q := redirectQuery(t, res)
	require.NotEmpty(t, q.Get("code"))
	require.Equal(t, testState, q.Get("state"))
	require.Equal(t, loginsessions.StateCompleted, f.loginSession(t, ls.ID).State)

	res = f.service.ResumeContinuation(ctx, ls, auth.RequestInfo{})
	require.Equal(t, auth.ResultFail, res.Kind)
	require.Equal(t, apperrors.KindNotFound, apperrors.KindOf(res.Err))
}

func TestContinuationScreensUnavailableOutsideContinuation(t *testing.T) {
	f := setupTestFixture(t)
	ls := f.authorize(t, codeParams())

	_, err := f.service.ContinuationUser(context.Background(), ls, auth.ScreenAccount)
	require.Equal(t, apperrors.KindAuthorizationDenied, apperrors.KindOf(err))

	res := f.service.ChangeEmail(context.Background(), ls, "jane.doe@example.com")
	require.Equal(t, auth.ResultFail, res.Kind)
}
