package auth

import (
	"context"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

// ContinuePath is the return URL of a continuation.
func ContinuePath(state string) string {
	return "/u/continue?state=" + url.QueryEscape(state)
}

// ContinuationUser returns the user a continuation was started for, provided the continuation
// scope covers target.
func (as *AuthorizationService) ContinuationUser(ctx context.Context, ls *loginsessions.LoginSession, target string) (*users.User, error) {
	if !ls.ContinuationAllows(target) {
		return nil, apperrors.Denied("This page is not available for the current login.", loginsessions.ErrNotInContinuation)
	}
	user, err := as.repos.Users.Get(ctx, ls.TenantID, ls.StateData.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, errSessionExpired()
	}
	if err != nil {
		return nil, transient("[AuthorizationService.ContinuationUser] Get", err)
	}
	return user, nil
}

// ChangeEmail updates the email of the continuation's user. The new address is unverified
// until the user proves control of it.
func (as *AuthorizationService) ChangeEmail(ctx context.Context, ls *loginsessions.LoginSession, newEmail string) Result {
	user, err := as.ContinuationUser(ctx, ls, ScreenChangeEmail)
	if err != nil {
		return Fail(err)
	}
	id, err := ClassifyIdentifier(newEmail, "")
	if err != nil || id.Type != IdentifierEmail {
		return ContinueWithError(ScreenChangeEmail, apperrors.Validation("email", "Enter a valid email address."))
	}
	if strings.EqualFold(user.Email, id.Normalized) {
		return Redirect(ScreenPath(ScreenAccount, ls.ID))
	}

	user.Email = id.Normalized
	user.EmailVerified = false
	user.UpdatedAt = as.nowTime()
	if err := as.repos.Users.Update(ctx, user); err != nil {
		return Fail(transient("[AuthorizationService.ChangeEmail] Update", err))
	}
	res := Redirect(ScreenPath(ScreenAccount, ls.ID))
	res.Notice = "Your email address has been updated."
	return res
}

// ResumeContinuation is reached through the continuation return URL. It clears the
// continuation and completes the original authorization request.
func (as *AuthorizationService) ResumeContinuation(ctx context.Context, ls *loginsessions.LoginSession, req RequestInfo) Result {
	userID := ls.StateData.UserID
	if err := as.loginSessions.EndContinuation(ctx, ls); err != nil {
		if errors.Is(err, loginsessions.ErrNotInContinuation) {
			return Fail(notFound("There is nothing to continue.", err))
		}
		return Fail(transient("[AuthorizationService.ResumeContinuation] EndContinuation", err))
	}
	user, err := as.repos.Users.Get(ctx, ls.TenantID, userID)
	if err != nil {
		return Fail(transient("[AuthorizationService.ResumeContinuation] Get", err))
	}
	return as.CompleteAuth(ctx, Completion{LoginSession: ls, User: user, Request: req})
}
