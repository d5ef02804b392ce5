package auth_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/hooks"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/stretchr/testify/require"
)

func (f *testFixture) createProfileForm(t *testing.T) *hooks.Form {
	t.Helper()
	form := &hooks.Form{
		ID:       "form_profile",
		TenantID: testTenantID,
		Name:     "Complete your profile",
		Nodes: []hooks.Node{
			{ID: "node_name", Title: "Your name", Fields: []hooks.Field{
				{Name: "given_name", Label: "First name", Type: "text", Required: true},
				{Name: "family_name", Label: "Last name", Type: "text"},
			}},
			{ID: "node_terms", Title: "Terms", Fields: []hooks.Field{
				{Name: "accepted_terms", Label: "I accept the terms", Type: "checkbox", Required: true},
			}},
		},
	}
	require.NoError(t, f.forms.Upsert(context.Background(), form))
	return form
}

func TestPostLoginFormFlowCompletesLogin(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	form := f.createProfileForm(t)
	f.gate.postLogin = hooks.RequireForm(form.ID, "node_name")
	user := f.createPasswordUser(t, testUserEmail, testUserPassword)

	ls, res := f.passwordLogin(t, codeParams(), testUserEmail, testUserPassword)
	require.Equal(t, auth.ResultRedirect, res.Kind)
	require.Equal(t, auth.FormNodePath(form.ID, "node_name", ls.ID), res.URL)
	require.Equal(t, loginsessions.StateAwaitingHook, f.loginSession(t, ls.ID).State)

	_, node, err := f.service.FormNode(ctx, ls, form.ID, "node_name")
	require.NoError(t, err)
	require.Equal(t, "Your name", node.Title)

	_, _, err = f.service.FormNode(ctx, ls, form.ID, "node_terms")
	require.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	res = f.service.SubmitFormNode(ctx, ls, form.ID, "node_name", map[string]string{"family_name": "Doe"}, auth.RequestInfo{})
	require.Equal(t, auth.ResultContinue, res.Kind)
	require.Equal(t, auth.ScreenFormNode, res.Screen)
	var fieldErr *apperrors.Error
	require.True(t, apperrors.As(res.Err, &fieldErr))
	require.Equal(t, "given_name", fieldErr.Field)

	res = f.service.SubmitFormNode(ctx, ls, form.ID, "node_name", map[string]string{"given_name": "John", "family_name": "Doe"}, auth.RequestInfo{})
	require.Equal(t, auth.FormNodePath(form.ID, "node_terms", ls.ID), res.URL)

	res = f.service.SubmitFormNode(ctx, ls, form.ID, "node_terms", map[string]string{"accepted_terms": "on"}, auth.RequestInfo{})
	code := redirectQuery(t, res).Get("code")
	require.NotEmpty(t, code)
	require.Equal(t, 1, f.gate.postLoginCalls)

	stored := f.user(t, user.ID)
	require.Equal(t, "John", stored.UserMetadata["given_name"])
	require.Equal(t, "on", stored.UserMetadata["accepted_terms"])
	require.True(t, hooks.FormCompleted(stored, form.ID))

	res = f.service.CompleteHook(ctx, ls, auth.RequestInfo{})
	require.Equal(t, auth.ResultFail, res.Kind)
	require.Equal(t, apperrors.KindNotFound, apperrors.KindOf(res.Err))

	resp := f.exchange(t, code)
	require.NotEmpty(t, resp.AccessToken)
}

func TestCompleteHookCannotSkipPendingForm(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	form := f.createProfileForm(t)
	f.gate.postLogin = hooks.RequireForm(form.ID, "node_name")
	f.createPasswordUser(t, testUserEmail, testUserPassword)

	ls, res := f.passwordLogin(t, codeParams(), testUserEmail, testUserPassword)
	require.Equal(t, auth.FormNodePath(form.ID, "node_name", ls.ID), res.URL)

	res = f.service.CompleteHook(ctx, f.loginSession(t, ls.ID), auth.RequestInfo{})
	require.Equal(t, auth.ResultRedirect, res.Kind)
	require.Equal(t, auth.FormNodePath(form.ID, "node_name", ls.ID), res.URL)

	stored := f.loginSession(t, ls.ID)
	require.Equal(t, loginsessions.StateAwaitingHook, stored.State)
	require.False(t, stored.StateData.HookCompleted)
	require.Equal(t, "node_name", stored.StateData.HookNodeID)

	res = f.service.SubmitFormNode(ctx, stored, form.ID, "node_name", map[string]string{"given_name": "John"}, auth.RequestInfo{})
	require.Equal(t, auth.FormNodePath(form.ID, "node_terms", ls.ID), res.URL)

	res = f.service.CompleteHook(ctx, f.loginSession(t, ls.ID), auth.RequestInfo{})
	require.Equal(t, auth.FormNodePath(form.ID, "node_terms", ls.ID), res.URL)
	require.Equal(t, loginsessions.StateAwaitingHook, f.loginSession(t, ls.ID).State)
}

func TestCompleteHookWithoutWaitIsNotFound(t *testing.T) {
	f := setupTestFixture(t)
	ls := f.authorize(t, codeParams())

	res := f.service.CompleteHook(context.Background(), ls, auth.RequestInfo{})
	require.Equal(t, auth.ResultFail, res.Kind)
	require.Equal(t, apperrors.KindNotFound, apperrors.KindOf(res.Err))
}

func TestPostLoginDenyShowsReasonVerbatim(t *testing.T) {
	f := setupTestFixture(t)
	const reason = "Your account is pending approval by an administrator."
	f.gate.postLogin = hooks.Deny(reason)
	user := f.createPasswordUser(t, testUserEmail, testUserPassword)

	_, res := f.passwordLogin(t, codeParams(), testUserEmail, testUserPassword)
	q := redirectQuery(t, res)
	require.Equal(t, auth.CodeAccessDenied, q.Get("error"))
	require.Equal(t, reason, q.Get("error_description"))
	require.Empty(t, q.Get("code"))

	denied := f.audit.OfType(audit.EventPostLoginDenied)
	require.Len(t, denied, 1)
	require.Equal(t, user.ID, denied[0].UserID)
	require.Equal(t, reason, denied[0].Error)
}
