package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/audit"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/users"
)

// Login methods used for metrics and audit metadata.
const (
	MethodCode        = "code"
	MethodPassword    = "password"
	MethodUpstream    = "upstream"
	MethodTicket      = "ticket"
	MethodSession     = "session"
	MethodImpersonate = "impersonate"
)

// AccountContinuationScope is what a screen_hint=account login may reach without
// authenticating again.
var AccountContinuationScope = []string{ScreenAccount, ScreenChangeEmail}

const ScreenHintAccount = "account"

// finishLogin runs once a credential has been verified for user. Login bookkeeping is kept on
// the primary user of the linking chain, which is also the subject of the issued tokens.
func (as *AuthorizationService) finishLogin(ctx context.Context, ls *loginsessions.LoginSession, user *users.User, method string, req RequestInfo) Result {
	primary, err := as.lockout.Primary(ctx, user)
	if err != nil {
		return Fail(transient("[AuthorizationService.finishLogin] Primary", err))
	}
	if primary.Blocked || user.Blocked {
		as.emit(ctx, audit.Event{
			Type:           audit.EventLoginFailed,
			TenantID:       ls.TenantID,
			UserID:         primary.ID,
			ClientID:       ls.AuthParams.ClientID,
			LoginSessionID: ls.ID,
			IP:             req.IP,
			Error:          apperrors.ErrUserBlocked.Error(),
		})
		return as.errorResponse(ls.AuthParams, apperrors.Denied("The user is blocked.", apperrors.ErrUserBlocked))
	}

	now := as.nowTime()
	primary.LastLogin = &now
	primary.LastIP = req.IP
	primary.LoginCount++
	primary.UpdatedAt = now
	primary.AppMetadata.FailedLogins = []int64{}
	if err := as.repos.Users.Update(ctx, primary); err != nil {
		return Fail(transient("[AuthorizationService.finishLogin] Update", err))
	}

	as.metrics.Login(ls.TenantID, method, true)
	as.emit(ctx, audit.Event{
		Type:           audit.EventLoginSuccess,
		TenantID:       ls.TenantID,
		UserID:         primary.ID,
		ClientID:       ls.AuthParams.ClientID,
		LoginSessionID: ls.ID,
		IP:             req.IP,
		Success:        true,
		Metadata:       map[string]string{"method": method, "identity": user.ID},
	})

	if ls.AuthParams.ScreenHint == ScreenHintAccount && !ls.StateData.ContinuationVisited {
		ls.StateData.UserID = primary.ID
		if err := as.loginSessions.StartContinuation(ctx, ls, AccountContinuationScope, ContinuePath(ls.ID)); err != nil {
			return Fail(transient("[AuthorizationService.finishLogin] StartContinuation", err))
		}
		return Redirect(ScreenPath(ScreenAccount, ls.ID))
	}

	return as.CompleteAuth(ctx, Completion{LoginSession: ls, User: primary, Request: req})
}

// requireUsername returns the identifier recorded by the identifier screen.
func requireUsername(ls *loginsessions.LoginSession) (string, error) {
	if ls.AuthParams.Username == "" {
		return "", errSessionExpired()
	}
	return ls.AuthParams.Username, nil
}
