package auth

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/connections"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/notify"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

// sendCode issues an OTP owned by the login session and bound to the identifier it is sent to,
// and delivers it as a code or a magic link.
func (as *AuthorizationService) sendCode(ctx context.Context, tenant *tenants.Tenant, ls *loginsessions.LoginSession, res *Resolution) error {
	code, err := as.codes.Issue(ctx, codes.Code{
		TenantID:     tenant.ID,
		CodeType:     codes.TypeOTP,
		LoginID:      ls.ID,
		ConnectionID: res.Connection.ID,
		CodeVerifier: res.Identifier.Normalized,
		RedirectURI:  ls.AuthParams.RedirectURI,
	})
	if err != nil {
		return transient("[AuthorizationService.sendCode] Issue", err)
	}
	as.metrics.CodeIssued(tenant.ID, string(codes.TypeOTP))

	to := notify.Recipient{TenantID: tenant.ID, Address: res.Identifier.Normalized, Channel: notify.ChannelEmail}
	if res.Identifier.Type == IdentifierPhone {
		to.Channel = notify.ChannelSMS
	}
	language := as.language(tenant, ls)

	if res.Connection.UsesMagicLink() {
		err = as.notifier.SendLink(ctx, to, code.CodeID, as.magicLink(tenant, ls.ID, code.CodeID), language)
	} else {
		err = as.notifier.SendCode(ctx, to, code.CodeID, language)
	}
	if err != nil {
		as.logger.Warn().Err(err).
			Str("tenant_id", tenant.ID).
			Str("login_session_id", ls.ID).
			Msg("code delivery failed")
	}
	return nil
}

func (as *AuthorizationService) magicLink(tenant *tenants.Tenant, state, code string) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("verification_code", code)
	return as.absoluteURL(tenant, "/passwordless/verify_redirect?"+q.Encode())
}

// absoluteURL prefixes path with the tenant's issuer, or the configured base URL.
func (as *AuthorizationService) absoluteURL(tenant *tenants.Tenant, path string) string {
	base := strings.TrimSuffix(tenant.Issuer, "/")
	if base == "" {
		base = strings.TrimSuffix(as.baseURL, "/")
	}
	return base + path
}

func (as *AuthorizationService) language(tenant *tenants.Tenant, ls *loginsessions.LoginSession) string {
	if l := ls.AuthParams.Locale(); l != "" {
		return l
	}
	return tenant.DefaultLocale
}

// VerifyCode redeems an OTP typed on the enter-code screen or carried by a magic link. The
// code must belong to the login session and have been sent to its current identifier. Unknown,
// expired, foreign and already used codes all re-render the screen with the same field error.
func (as *AuthorizationService) VerifyCode(ctx context.Context, ls *loginsessions.LoginSession, submitted string, req RequestInfo) Result {
	username, err := requireUsername(ls)
	if err != nil {
		return Fail(err)
	}

	code, err := as.codes.Lookup(ctx, ls.TenantID, strings.TrimSpace(submitted), codes.TypeOTP)
	if err == nil && (code.LoginID != ls.ID || code.CodeVerifier != username) {
		err = codes.ErrCodeNotFound
	}
	if err == nil {
		err = as.codes.Consume(ctx, code)
	}
	if errors.Is(err, codes.ErrCodeNotFound) {
		as.metrics.CodeRedeemed(ls.TenantID, string(codes.TypeOTP), false)
		as.metrics.Login(ls.TenantID, MethodCode, false)
		return ContinueWithError(ScreenEnterCode, invalidCode())
	}
	if err != nil {
		return Fail(transient("[AuthorizationService.VerifyCode] redeem", err))
	}
	as.metrics.CodeRedeemed(ls.TenantID, string(codes.TypeOTP), true)

	conn, err := as.repos.Connections.Get(ctx, ls.TenantID, code.ConnectionID)
	if err != nil {
		return Fail(transient("[AuthorizationService.VerifyCode] connection", err))
	}
	user, err := as.passwordlessUser(ctx, ls, conn, req)
	if err != nil {
		return Fail(err)
	}
	return as.finishLogin(ctx, ls, user, MethodCode, req)
}

// passwordlessUser finds the user for the verified identifier, or creates it. Proving control of
// the identifier verifies it.
func (as *AuthorizationService) passwordlessUser(ctx context.Context, ls *loginsessions.LoginSession, conn *connections.Connection, req RequestInfo) (*users.User, error) {
	identifier := ls.AuthParams.Username
	now := as.nowTime()

	user, err := as.repos.Users.Find(ctx, ls.TenantID, conn.Provider(), identifier)
	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		return nil, transient("[AuthorizationService.passwordlessUser] Find", err)
	}
	if user != nil {
		changed := false
		if conn.Strategy == connections.StrategySMS && !user.PhoneVerified {
			user.PhoneVerified, changed = true, true
		}
		if conn.Strategy != connections.StrategySMS && !user.EmailVerified {
			user.EmailVerified, changed = true, true
		}
		if changed {
			user.UpdatedAt = now
			if err := as.repos.Users.Update(ctx, user); err != nil {
				return nil, transient("[AuthorizationService.passwordlessUser] Update", err)
			}
		}
		return user, nil
	}

	user = &users.User{
		ID:         conn.Provider() + "|" + uuid.NewString(),
		TenantID:   ls.TenantID,
		Provider:   conn.Provider(),
		Connection: conn.Name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if conn.Strategy == connections.StrategySMS {
		user.PhoneNumber = identifier
		user.PhoneVerified = true
	} else {
		user.Email = identifier
		user.EmailVerified = true
	}
	if err := as.linkToVerifiedEmail(ctx, user, req); err != nil {
		return nil, err
	}
	if err := as.repos.Users.Create(ctx, user); err != nil {
		return nil, transient("[AuthorizationService.passwordlessUser] Create", err)
	}
	return user, nil
}

// linkToVerifiedEmail links a new identity with a verified email to the primary user that
// already owns the same verified email in the tenant.
func (as *AuthorizationService) linkToVerifiedEmail(ctx context.Context, user *users.User, req RequestInfo) error {
	if user.Email == "" || !user.EmailVerified {
		return nil
	}
	existing, err := as.repos.Users.ListByEmail(ctx, user.TenantID, user.Email)
	if err != nil {
		return transient("[AuthorizationService.linkToVerifiedEmail] ListByEmail", err)
	}
	for _, candidate := range existing {
		if candidate.ID == user.ID || !candidate.EmailVerified {
			continue
		}
		primary, err := as.lockout.Primary(ctx, candidate)
		if err != nil {
			return transient("[AuthorizationService.linkToVerifiedEmail] Primary", err)
		}
		user.LinkedTo = primary.ID
		as.emit(ctx, audit.Event{
			Type:     audit.EventAccountLinked,
			TenantID: user.TenantID,
			UserID:   primary.ID,
			IP:       req.IP,
			Success:  true,
			Metadata: map[string]string{"identity": user.ID, "connection": user.Connection},
		})
		return nil
	}
	return nil
}
