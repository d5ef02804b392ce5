package auth

import (
	"context"
	"slices"
	"strings"

	"github.com/jrsteele09/go-auth-engine/audit"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

// ImpersonatePermission must be held on the tenant's management audience to impersonate.
const ImpersonatePermission = "users:impersonate"

// Impersonator returns the user of the request's session when it may impersonate others. The
// user is returned with the error when only the permission is missing.
func (as *AuthorizationService) Impersonator(ctx context.Context, ls *loginsessions.LoginSession, req RequestInfo) (*users.User, error) {
	_, actor, ok := as.activeSession(ctx, ls.TenantID, req.SessionID)
	if !ok {
		return nil, loginRequired()
	}
	allowed, err := as.canImpersonate(ctx, ls.TenantID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return actor, apperrors.Denied("You are not allowed to impersonate users.", nil)
	}
	return actor, nil
}

func (as *AuthorizationService) canImpersonate(ctx context.Context, tenantID, userID string) (bool, error) {
	tenant, err := as.tenant(ctx, tenantID)
	if err != nil {
		return false, err
	}
	if tenant.ManagementAudience == "" {
		return false, nil
	}
	permissions, err := as.repos.Permissions.ListForUser(ctx, tenantID, userID, tenant.ManagementAudience)
	if err != nil {
		return false, transient("[AuthorizationService.canImpersonate] ListForUser", err)
	}
	return slices.Contains(permissions, ImpersonatePermission), nil
}

// Impersonate completes the login session as target on behalf of the session's user. Tokens
// carry the actor in the act claim. Both identities are audited on success and failure.
func (as *AuthorizationService) Impersonate(ctx context.Context, ls *loginsessions.LoginSession, target string, req RequestInfo) Result {
	event := audit.Event{
		Type:           audit.EventImpersonationDenied,
		TenantID:       ls.TenantID,
		ClientID:       ls.AuthParams.ClientID,
		LoginSessionID: ls.ID,
		IP:             req.IP,
		Metadata:       map[string]string{"target": target},
	}

	actor, err := as.Impersonator(ctx, ls, req)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindTransient {
			return Fail(err)
		}
		if actor != nil {
			event.Metadata["actor"] = actor.ID
		}
		event.Error = err.Error()
		as.emit(ctx, event)
		denied := apperrors.Denied(errorDescription(err), err)
		denied.Field = "user"
		return ContinueWithError(ScreenImpersonate, denied)
	}
	event.Metadata["actor"] = actor.ID

	user, err := as.impersonationTarget(ctx, ls.TenantID, strings.TrimSpace(target))
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindTransient {
			return Fail(err)
		}
		event.Error = err.Error()
		as.emit(ctx, event)
		return ContinueWithError(ScreenImpersonate, err)
	}

	event.Type = audit.EventImpersonation
	event.UserID = user.ID
	event.Success = true
	event.Error = ""
	as.emit(ctx, event)
	as.metrics.Login(ls.TenantID, MethodImpersonate, true)

	return as.CompleteAuth(ctx, Completion{
		LoginSession: ls,
		User:         user,
		Impersonator: actor,
		SkipHooks:    true,
		Request:      req,
	})
}

// impersonationTarget resolves target by user id, then by email or username.
func (as *AuthorizationService) impersonationTarget(ctx context.Context, tenantID, target string) (*users.User, error) {
	notFoundErr := apperrors.Validation("user", "No user matches "+target+".")
	notFoundErr.Err = apperrors.ErrUserNotFound
	if target == "" {
		return nil, notFoundErr
	}

	user, err := as.repos.Users.Get(ctx, tenantID, target)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return nil, transient("[AuthorizationService.impersonationTarget] Get", err)
	}
	matches, err := as.repos.Users.ListByEmail(ctx, tenantID, target)
	if err != nil {
		return nil, transient("[AuthorizationService.impersonationTarget] ListByEmail", err)
	}
	for _, m := range matches {
		if m.IsPrimary() {
			return m, nil
		}
	}
	return nil, notFoundErr
}
