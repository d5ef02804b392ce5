package auth

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/connections"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/notify"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

// Notices shown on the enter-password screen.
const (
	NoticeResetSent     = "If an account exists for this email, we have sent you a link to reset your password."
	NoticePasswordSaved = "Your password has been changed. You can now log in with it."
)

// VerifyPassword checks the password typed on the enter-password screen. The lockout check
// runs first, so a locked out user is rejected whatever the password.
func (as *AuthorizationService) VerifyPassword(ctx context.Context, ls *loginsessions.LoginSession, password string, req RequestInfo) Result {
	username, err := requireUsername(ls)
	if err != nil {
		return Fail(err)
	}
	user, primary, err := as.passwordUser(ctx, ls.TenantID, username)
	if err != nil {
		return Fail(err)
	}

	if primary != nil && as.lockout.IsLockedOut(primary) {
		as.metrics.Lockout(ls.TenantID)
		as.metrics.Login(ls.TenantID, MethodPassword, false)
		as.emit(ctx, audit.Event{
			Type:           audit.EventLockedOut,
			TenantID:       ls.TenantID,
			UserID:         primary.ID,
			ClientID:       ls.AuthParams.ClientID,
			LoginSessionID: ls.ID,
			IP:             req.IP,
			Error:          apperrors.ErrTooManyFailedLogins.Error(),
		})
		return ContinueWithError(ScreenEnterPassword, apperrors.LockedOut())
	}

	ok, err := as.checkPassword(ctx, user, password)
	if err != nil {
		return Fail(err)
	}
	if !ok {
		return as.passwordFailed(ctx, ls, user, primary, req)
	}
	return as.finishLogin(ctx, ls, user, MethodPassword, req)
}

// passwordUser finds the password realm user for username together with its primary user.
// Both are nil when no such user exists.
func (as *AuthorizationService) passwordUser(ctx context.Context, tenantID, username string) (*users.User, *users.User, error) {
	user, err := as.repos.Users.Find(ctx, tenantID, connections.ProviderPassword, username)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, transient("[AuthorizationService.passwordUser] Find", err)
	}
	primary, err := as.lockout.Primary(ctx, user)
	if err != nil {
		return nil, nil, transient("[AuthorizationService.passwordUser] Primary", err)
	}
	return user, primary, nil
}

func (as *AuthorizationService) checkPassword(ctx context.Context, user *users.User, password string) (bool, error) {
	if user == nil || password == "" {
		return false, nil
	}
	stored, err := as.repos.Passwords.Get(ctx, user.TenantID, user.ID)
	if errors.Is(err, users.ErrPasswordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, transient("[AuthorizationService.checkPassword] Get", err)
	}
	return users.CheckPasswordHash(password, stored.Hash), nil
}

func (as *AuthorizationService) passwordFailed(ctx context.Context, ls *loginsessions.LoginSession, user, primary *users.User, req RequestInfo) Result {
	as.metrics.Login(ls.TenantID, MethodPassword, false)
	event := audit.Event{
		Type:           audit.EventLoginFailed,
		TenantID:       ls.TenantID,
		ClientID:       ls.AuthParams.ClientID,
		LoginSessionID: ls.ID,
		IP:             req.IP,
		Error:          apperrors.ErrInvalidCredentials.Error(),
	}
	if primary != nil {
		event.UserID = primary.ID
		event.Metadata = map[string]string{"identity": user.ID}
		if _, err := as.lockout.RecordFailure(ctx, primary); err != nil {
			return Fail(transient("[AuthorizationService.passwordFailed] RecordFailure", err))
		}
	}
	as.emit(ctx, event)
	return ContinueWithError(ScreenEnterPassword, invalidCredentials())
}

// StartPasswordReset issues a password_reset code tied to the login session and mails the
// reset link. The result is the same whether or not the account exists.
func (as *AuthorizationService) StartPasswordReset(ctx context.Context, ls *loginsessions.LoginSession, req RequestInfo) Result {
	username, err := requireUsername(ls)
	if err != nil {
		return Fail(err)
	}
	tenant, err := as.tenant(ctx, ls.TenantID)
	if err != nil {
		return Fail(err)
	}
	user, _, err := as.passwordUser(ctx, ls.TenantID, username)
	if err != nil {
		return Fail(err)
	}

	res := Continue(ScreenEnterPassword)
	res.Notice = NoticeResetSent
	if user == nil || user.Email == "" {
		return res
	}

	code, err := as.codes.Issue(ctx, codes.Code{
		TenantID: ls.TenantID,
		CodeType: codes.TypePasswordReset,
		LoginID:  ls.ID,
		UserID:   user.ID,
	})
	if err != nil {
		return Fail(transient("[AuthorizationService.StartPasswordReset] Issue", err))
	}
	as.metrics.CodeIssued(ls.TenantID, string(codes.TypePasswordReset))

	q := url.Values{}
	q.Set("state", ls.ID)
	q.Set("code", code.CodeID)
	link := as.absoluteURL(tenant, "/u/"+ScreenResetPassword+"?"+q.Encode())
	to := notify.Recipient{TenantID: ls.TenantID, Address: user.Email, Channel: notify.ChannelEmail}
	if err := as.notifier.SendResetPassword(ctx, to, link, as.language(tenant, ls)); err != nil {
		as.logger.Warn().Err(err).
			Str("tenant_id", ls.TenantID).
			Str("user_id", user.ID).
			Msg("password reset delivery failed")
	}
	return res
}

// ResetPassword sets a new password using a reset code. The code must have been issued for
// the user the login session's username resolves to. The code is deleted last so that a
// failure part way leaves the reset retryable. A reset that loses that deletion to a concurrent
// one reports the code as invalid.
func (as *AuthorizationService) ResetPassword(ctx context.Context, ls *loginsessions.LoginSession, submittedCode, newPassword string, req RequestInfo) Result {
	username, err := requireUsername(ls)
	if err != nil {
		return Fail(err)
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return ContinueWithError(ScreenResetPassword, apperrors.Validation("password", err.Error()))
	}

	user, primary, err := as.passwordUser(ctx, ls.TenantID, username)
	if err != nil {
		return Fail(err)
	}
	code, err := as.codes.Lookup(ctx, ls.TenantID, submittedCode, codes.TypePasswordReset)
	if err != nil && !errors.Is(err, codes.ErrCodeNotFound) {
		return Fail(transient("[AuthorizationService.ResetPassword] Lookup", err))
	}
	if err != nil || user == nil || code.UserID != user.ID || code.LoginID != ls.ID {
		as.metrics.CodeRedeemed(ls.TenantID, string(codes.TypePasswordReset), false)
		return ContinueWithError(ScreenResetPassword, invalidCode())
	}

	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return Fail(transient("[AuthorizationService.ResetPassword] HashPassword", err))
	}
	now := as.nowTime()

	if err := as.repos.Passwords.Remove(ctx, ls.TenantID, user.ID); err != nil && !errors.Is(err, users.ErrPasswordNotFound) {
		return Fail(transient("[AuthorizationService.ResetPassword] Remove", err))
	}
	if err := as.repos.Passwords.Create(ctx, &users.Password{TenantID: ls.TenantID, UserID: user.ID, Hash: hash, CreatedAt: now}); err != nil {
		return Fail(transient("[AuthorizationService.ResetPassword] Create", err))
	}
	if !user.EmailVerified {
		user.EmailVerified = true
		user.UpdatedAt = now
		if err := as.repos.Users.Update(ctx, user); err != nil {
			return Fail(transient("[AuthorizationService.ResetPassword] Update", err))
		}
	}
	if primary.ID == user.ID {
		primary = user
	}
	if err := as.lockout.Clear(ctx, primary); err != nil {
		return Fail(transient("[AuthorizationService.ResetPassword] Clear", err))
	}
	if err := as.codes.Consume(ctx, code); err != nil {
		if errors.Is(err, codes.ErrCodeNotFound) {
			as.metrics.CodeRedeemed(ls.TenantID, string(codes.TypePasswordReset), false)
			return ContinueWithError(ScreenResetPassword, invalidCode())
		}
		return Fail(transient("[AuthorizationService.ResetPassword] Consume", err))
	}
	as.metrics.CodeRedeemed(ls.TenantID, string(codes.TypePasswordReset), true)
	as.emit(ctx, audit.Event{
		Type:           audit.EventPasswordReset,
		TenantID:       ls.TenantID,
		UserID:         user.ID,
		ClientID:       ls.AuthParams.ClientID,
		LoginSessionID: ls.ID,
		IP:             req.IP,
		Success:        true,
	})

	res := Continue(ScreenEnterPassword)
	res.Notice = NoticePasswordSaved
	return res
}
