package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/hooks"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
)

// SubmitIdentifier classifies the identifier typed on the identifier screen, records it on
// the login session and routes to the enter-code or enter-password screen. A code is issued
// and sent for the code strategy.
func (as *AuthorizationService) SubmitIdentifier(ctx context.Context, ls *loginsessions.LoginSession, raw string, req RequestInfo) Result {
	tenant, err := as.tenant(ctx, ls.TenantID)
	if err != nil {
		return Fail(err)
	}
	client, err := as.client(ctx, ls.TenantID, ls.AuthParams.ClientID)
	if err != nil {
		return Fail(err)
	}

	id, err := ClassifyIdentifier(raw, tenant.GetDefaultCountry())
	if err != nil {
		return ContinueWithError(ScreenIdentifier, err)
	}
	res, err := as.ResolveStrategy(ctx, client, id, ls.AuthParams.LoginSelection)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindValidation {
			return ContinueWithError(ScreenIdentifier, err)
		}
		return Fail(err)
	}

	if res.User == nil && id.Type == IdentifierEmail {
		decision, err := as.gate.ValidateSignupEmail(ctx, hooks.SignupRequest{
			TenantID:     ls.TenantID,
			ClientID:     client.ID,
			ConnectionID: res.Connection.ID,
			Email:        id.Normalized,
			IP:           req.IP,
		})
		if err != nil {
			return Fail(transient("[AuthorizationService.SubmitIdentifier] ValidateSignupEmail", err))
		}
		if decision.Action == hooks.ActionDeny {
			as.emit(ctx, audit.Event{
				Type:           audit.EventSignupDenied,
				TenantID:       ls.TenantID,
				ClientID:       client.ID,
				LoginSessionID: ls.ID,
				IP:             req.IP,
				Error:          decision.Reason,
				Metadata:       map[string]string{"email": id.Normalized},
			})
			denied := apperrors.Denied(decision.Reason, apperrors.ErrSignupDenied)
			denied.Field = "username"
			return ContinueWithError(ScreenIdentifier, denied)
		}
	}

	ls.AuthParams.Username = id.Normalized
	ls.AuthConnection = res.Connection.Name
	ls.AuthStrategy = string(res.Strategy)
	if err := as.loginSessions.Save(ctx, ls); err != nil {
		return Fail(transient("[AuthorizationService.SubmitIdentifier] Save", err))
	}

	if res.Strategy == StrategyPassword {
		return Continue(ScreenEnterPassword)
	}
	if err := as.sendCode(ctx, tenant, ls, res); err != nil {
		return Fail(err)
	}
	return Continue(ScreenEnterCode)
}
