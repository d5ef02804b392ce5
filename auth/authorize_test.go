package auth_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/hooks"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/notify"
	"github.com/jrsteele09/go-auth-engine/oauthmodel"
	"github.com/stretchr/testify/require"
)

func TestAuthorizeFailsWithoutRedirectForUnknownRedirectURI(t *testing.T) {
	f := setupTestFixture(t)
	params := codeParams()
	params.RedirectURI = "https://evil.example.com/callback"

	res := f.service.Authorize(context.Background(), params, auth.RequestInfo{})
	require.Equal(t, auth.ResultFail, res.Kind)
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidRedirectURI)
}

func TestAuthorizeDeliversParameterErrorsToClient(t *testing.T) {
	f := setupTestFixture(t)
	params := codeParams()
	params.CodeChallenge = ""

	res := f.service.Authorize(context.Background(), params, auth.RequestInfo{})
	q := redirectQuery(t, res)
	require.Equal(t, auth.CodeInvalidRequest, q.Get("error"))
	require.Equal(t, testState, q.Get("state"))
}

func TestAuthorizeUnknownClientFails(t *testing.T) {
	f := setupTestFixture(t)
	params := codeParams()
	params.ClientID = "nope"

	res := f.service.Authorize(context.Background(), params, auth.RequestInfo{})
	require.Equal(t, auth.ResultFail, res.Kind)
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidClient)
}

func TestPasswordlessCodeLoginIssuesAuthorizationCode(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	ls := f.authorize(t, codeParams())
	res := f.service.SubmitIdentifier(ctx, ls, "  Foo@Example.com ", auth.RequestInfo{})
	require.NoError(t, res.Err)
	require.Equal(t, auth.ResultContinue, res.Kind)
	require.Equal(t, auth.ScreenEnterCode, res.Screen)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, notify.KindCode, sent[0].Kind)
	require.Equal(t, "foo@example.com", sent[0].To.Address)
	require.Len(t, sent[0].Code, 6)

	otp, err := f.codes.Get(ctx, testTenantID, sent[0].Code, codes.TypeOTP)
	require.NoError(t, err)
	require.Equal(t, ls.ID, otp.LoginID)
	require.Equal(t, "con_email", otp.ConnectionID)

	res = f.service.VerifyCode(ctx, ls, sent[0].Code, auth.RequestInfo{})
	q := redirectQuery(t, res)
	require.Equal(t, testState, q.Get("state"))
	authCode, err := f.codes.Get(ctx, testTenantID, q.Get("code"), codes.TypeAuthorizationCode)
	require.NoError(t, err)
	require.Equal(t, ls.ID, authCode.LoginID)
	require.Equal(t, testCodeChallenge, authCode.CodeChallenge)

	_, err = f.codes.Get(ctx, testTenantID, sent[0].Code, codes.TypeOTP)
	require.ErrorIs(t, err, codes.ErrCodeNotFound)

	user := f.user(t, authCode.UserID)
	require.Equal(t, "foo@example.com", user.Email)
	require.True(t, user.EmailVerified)
	require.Equal(t, 1, user.LoginCount)
	require.Len(t, f.audit.OfType(audit.EventLoginSuccess), 1)

	stored := f.loginSession(t, ls.ID)
	require.Equal(t, loginsessions.StateCompleted, stored.State)
	require.NotEmpty(t, stored.SessionID)
	require.Equal(t, stored.SessionID, sessionCookie(t, res))
}

func TestVerifyCodeRejectsReusedAndForeignCodes(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	first := f.authorize(t, codeParams())
	require.Equal(t, auth.ScreenEnterCode, f.service.SubmitIdentifier(ctx, first, "foo@example.com", auth.RequestInfo{}).Screen)
	firstCode, _ := f.notifier.Last()

	second := f.authorize(t, codeParams())
	require.Equal(t, auth.ScreenEnterCode, f.service.SubmitIdentifier(ctx, second, "foo@example.com", auth.RequestInfo{}).Screen)

	res := f.service.VerifyCode(ctx, second, firstCode.Code, auth.RequestInfo{})
	require.Equal(t, auth.ResultContinue, res.Kind)
	require.Equal(t, auth.ScreenEnterCode, res.Screen)
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidCode)

	res = f.service.VerifyCode(ctx, first, firstCode.Code, auth.RequestInfo{})
	require.Equal(t, auth.ResultRedirect, res.Kind)

	res = f.service.VerifyCode(ctx, f.loginSession(t, first.ID), firstCode.Code, auth.RequestInfo{})
	require.Equal(t, auth.ScreenEnterCode, res.Screen)
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidCode)
}

func TestVerifyCodeIsBoundToTheIdentifierItWasSentTo(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	ls := f.authorize(t, codeParams())
	require.Equal(t, auth.ScreenEnterCode, f.service.SubmitIdentifier(ctx, ls, "someone@example.com", auth.RequestInfo{}).Screen)
	ownCode, _ := f.notifier.Last()
	require.Equal(t, "someone@example.com", ownCode.To.Address)

	ls = f.loginSession(t, ls.ID)
	require.Equal(t, auth.ScreenEnterCode, f.service.SubmitIdentifier(ctx, ls, "foo@example.com", auth.RequestInfo{}).Screen)
	fooCode, _ := f.notifier.Last()
	require.Equal(t, "foo@example.com", fooCode.To.Address)

	ls = f.loginSession(t, ls.ID)
	res := f.service.VerifyCode(ctx, ls, ownCode.Code, auth.RequestInfo{})
	require.Equal(t, auth.ResultContinue, res.Kind)
	require.Equal(t, auth.ScreenEnterCode, res.Screen)
	require.ErrorIs(t, res.Err, apperrors.ErrInvalidCode)

	res = f.service.VerifyCode(ctx, f.loginSession(t, ls.ID), fooCode.Code, auth.RequestInfo{})
	require.Equal(t, auth.ResultRedirect, res.Kind)
}

func TestSignupDenialIssuesNoCode(t *testing.T) {
	f := setupTestFixture(t)
	f.gate.signup = hooks.Deny("Signups from this domain are closed.")
	ctx := context.Background()

	ls := f.authorize(t, codeParams())
	res := f.service.SubmitIdentifier(ctx, ls, "new@blocked.example.com", auth.RequestInfo{IP: "10.0.0.2"})
	require.Equal(t, auth.ResultContinue, res.Kind)
	require.Equal(t, auth.ScreenIdentifier, res.Screen)
	require.Equal(t, apperrors.KindAuthorizationDenied, apperrors.KindOf(res.Err))
	require.ErrorIs(t, res.Err, apperrors.ErrSignupDenied)

	var appErr *apperrors.Error
	require.True(t, apperrors.As(res.Err, &appErr))
	require.Equal(t, "username", appErr.Field)
	require.Equal(t, "Signups from this domain are closed.", appErr.Message)

	require.Empty(t, f.notifier.Sent())
	n, err := f.codes.RemoveExpired(ctx, codes.CleanupFilter{Before: f.now.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, f.audit.OfType(audit.EventSignupDenied), 1)
	require.Empty(t, f.loginSession(t, ls.ID).AuthParams.Username)
}

func TestSignupGateIsSkippedForExistingUsers(t *testing.T) {
	f := setupTestFixture(t)
	f.gate.signup = hooks.Deny("closed")
	f.createPasswordUser(t, testUserEmail, testUserPassword)

	ls := f.authorize(t, codeParams())
	res := f.service.SubmitIdentifier(context.Background(), ls, testUserEmail, auth.RequestInfo{})
	require.NoError(t, res.Err)
	require.Equal(t, auth.ScreenEnterPassword, res.Screen)
}

func TestSilentAuthWithoutSessionReturnsLoginRequired(t *testing.T) {
	f := setupTestFixture(t)
	params := codeParams()
	params.Prompt = oauthmodel.PromptNone
	params.ResponseMode = oauthmodel.WebMessageResponseMode

	res := f.service.Authorize(context.Background(), params, auth.RequestInfo{})
	require.Equal(t, auth.ResultDocument, res.Kind)
	require.Contains(t, res.Document, "authorization_response")
	require.Contains(t, res.Document, auth.CodeLoginRequired)
	require.Contains(t, res.Document, testState)
	require.ErrorIs(t, res.Err, apperrors.ErrSessionNotFound)
}

func TestSilentAuthWithSessionIssuesCode(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, res := f.codeLogin(t, codeParams(), "foo@example.com")
	sessionID := sessionCookie(t, res)

	params := codeParams()
	params.Prompt = oauthmodel.PromptNone
	res = f.service.Authorize(ctx, params, auth.RequestInfo{SessionID: sessionID})
	q := redirectQuery(t, res)
	require.NotEmpty(t, q.Get("code"))
	require.Equal(t, sessionID, sessionCookie(t, res))

	f.advance(4 * 24 * time.Hour)
	res = f.service.Authorize(ctx, params, auth.RequestInfo{SessionID: sessionID})
	require.Equal(t, auth.CodeLoginRequired, redirectQuery(t, res).Get("error"))
}

func TestSilentAuthRequiresSessionLinkedToClient(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, res := f.codeLogin(t, codeParams(), "foo@example.com")
	sessionID := sessionCookie(t, res)

	params := codeParams()
	params.ClientID = testBackendClientID
	params.CodeChallenge = ""
	params.CodeChallengeMethod = ""
	params.Prompt = oauthmodel.PromptNone
	res = f.service.Authorize(ctx, params, auth.RequestInfo{SessionID: sessionID})
	q := redirectQuery(t, res)
	require.Equal(t, auth.CodeLoginRequired, q.Get("error"))
	require.Empty(t, q.Get("code"))

	s, err := f.sessions.Get(ctx, testTenantID, sessionID)
	require.NoError(t, err)
	require.Equal(t, []string{testClientID}, s.Clients)

	params.Prompt = ""
	require.NotEmpty(t, redirectQuery(t, f.service.Authorize(ctx, params, auth.RequestInfo{SessionID: sessionID})).Get("code"))

	params.Prompt = oauthmodel.PromptNone
	require.NotEmpty(t, redirectQuery(t, f.service.Authorize(ctx, params, auth.RequestInfo{SessionID: sessionID})).Get("code"))
}

func TestSilentAuthCannotShowHookForm(t *testing.T) {
	f := setupTestFixture(t)
	_, res := f.codeLogin(t, codeParams(), "foo@example.com")
	sessionID := sessionCookie(t, res)

	f.gate.postLogin = hooks.RequireForm("profile", "details")
	params := codeParams()
	params.Prompt = oauthmodel.PromptNone
	res = f.service.Authorize(context.Background(), params, auth.RequestInfo{SessionID: sessionID})
	require.Equal(t, auth.CodeInteractionRequired, redirectQuery(t, res).Get("error"))
}

func TestSingleSignOnReusesSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, res := f.codeLogin(t, codeParams(), "foo@example.com")
	sessionID := sessionCookie(t, res)

	params := codeParams()
	params.ClientID = testBackendClientID
	params.CodeChallenge = ""
	params.CodeChallengeMethod = ""
	res = f.service.Authorize(ctx, params, auth.RequestInfo{SessionID: sessionID})
	require.NotEmpty(t, redirectQuery(t, res).Get("code"))

	s, err := f.sessions.Get(ctx, testTenantID, sessionID)
	require.NoError(t, err)
	require.Equal(t, []string{testClientID, testBackendClientID}, s.Clients)

	params.Prompt = oauthmodel.PromptLogin
	res = f.service.Authorize(ctx, params, auth.RequestInfo{SessionID: sessionID})
	require.Equal(t, auth.ResultRedirect, res.Kind)
	require.True(t, strings.HasPrefix(res.URL, "/u/"+auth.ScreenIdentifier), res.URL)
}

func TestImplicitFragmentResponse(t *testing.T) {
	f := setupTestFixture(t)
	params := codeParams()
	params.ResponseType = oauthmodel.IDTokenTokenResponseType
	params.CodeChallenge = ""
	params.CodeChallengeMethod = ""

	_, res := f.codeLogin(t, params, "foo@example.com")
	require.Equal(t, auth.ResultRedirect, res.Kind)
	require.True(t, strings.HasPrefix(res.URL, testRedirectURI+"#"), res.URL)
	require.Contains(t, res.URL, "access_token=")
	require.Contains(t, res.URL, "id_token=")
}

func TestFormPostResponse(t *testing.T) {
	f := setupTestFixture(t)
	params := codeParams()
	params.ResponseMode = oauthmodel.FormPostResponseMode

	_, res := f.codeLogin(t, params, "foo@example.com")
	require.Equal(t, auth.ResultDocument, res.Kind)
	require.Contains(t, res.Document, `action="`+testRedirectURI+`"`)
	require.Contains(t, res.Document, `name="code"`)
	require.Contains(t, res.Document, `value="`+testState+`"`)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	_, res := f.codeLogin(t, codeParams(), "foo@example.com")
	sessionID := sessionCookie(t, res)

	res = f.service.Logout(ctx, auth.LogoutRequest{TenantID: testTenantID, ClientID: testClientID, ReturnTo: "https://evil.example.com", SessionID: sessionID})
	require.Equal(t, auth.ResultFail, res.Kind)

	res = f.service.Logout(ctx, auth.LogoutRequest{TenantID: testTenantID, ClientID: testClientID, ReturnTo: "https://app.example.com/bye", SessionID: sessionID})
	require.Equal(t, auth.ResultRedirect, res.Kind)
	require.Equal(t, "https://app.example.com/bye", res.URL)
	require.Len(t, res.Cookies, 1)
	require.Equal(t, -1, res.Cookies[0].MaxAge)

	s, err := f.sessions.Get(ctx, testTenantID, sessionID)
	require.NoError(t, err)
	require.False(t, s.IsActive(f.now))
	require.Len(t, f.audit.OfType(audit.EventLogout), 1)

	params := codeParams()
	params.Prompt = oauthmodel.PromptNone
	res = f.service.Authorize(ctx, params, auth.RequestInfo{SessionID: sessionID})
	require.Equal(t, auth.CodeLoginRequired, redirectQuery(t, res).Get("error"))
}
