package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/connections"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/oauthmodel"
	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

// Authorize starts an authorization request. Requests whose client or redirect URI cannot be
// trusted fail without a redirect; every other error is delivered to the client.
func (as *AuthorizationService) Authorize(ctx context.Context, params oauthmodel.AuthorizationParameters, req RequestInfo) Result {
	tenant, err := as.tenant(ctx, params.TenantID)
	if err != nil {
		return Fail(err)
	}
	client, err := as.client(ctx, tenant.ID, params.ClientID)
	if err != nil {
		return Fail(err)
	}
	if !client.HasRedirectURI(params.RedirectURI) {
		return Fail(invalidRequest("The redirect_uri is not registered for the application.", apperrors.ErrInvalidRedirectURI))
	}
	if err := params.ValidateParametersWithClient(client); err != nil {
		if errors.Is(err, oauthmodel.ErrInvalidResponseMode) {
			params.ResponseMode = ""
		}
		return as.errorResponse(params, invalidRequest(err.Error(), err))
	}
	if params.Connection != "" && !client.HasConnection(params.Connection) {
		return as.errorResponse(params, invalidRequest("The connection is not enabled for the application.", connections.ErrConnectionNotFound))
	}
	// username is only ever set by the identifier screen.
	params.Username = ""

	ls, err := as.loginSessions.Create(ctx, tenant.ID, params, tenant.GetLoginSessionLifetime(), req.IP, req.UserAgent)
	if err != nil {
		return Fail(transient("[AuthorizationService.Authorize] Create", err))
	}
	as.triggerCleanup(tenant.ID)

	switch {
	case params.LoginTicket != "":
		return as.redeemLoginTicket(ctx, ls, req)
	case params.IsSilent():
		return as.silentAuth(ctx, ls, req)
	}

	if params.Prompt != oauthmodel.PromptLogin && params.ScreenHint == "" {
		if session, user, ok := as.activeSession(ctx, tenant.ID, req.SessionID); ok {
			as.metrics.Login(tenant.ID, MethodSession, true)
			return as.CompleteAuth(ctx, Completion{LoginSession: ls, User: user, ExistingSessionID: session.ID, Request: req})
		}
	}

	if params.Connection != "" {
		conn, err := as.repos.Connections.GetByName(ctx, tenant.ID, params.Connection)
		if err != nil {
			return as.errorResponse(params, invalidRequest("The connection does not exist.", err))
		}
		if conn.Strategy == connections.StrategyOIDC {
			return as.StartUpstreamLogin(ctx, ls, conn)
		}
	}
	return Redirect(ScreenPath(ScreenIdentifier, ls.ID))
}

// silentAuth answers prompt=none from the session cookie alone. The session must already be
// linked to the requesting client. Without such a session it returns login_required through the
// request's response mode.
func (as *AuthorizationService) silentAuth(ctx context.Context, ls *loginsessions.LoginSession, req RequestInfo) Result {
	session, user, ok := as.activeSession(ctx, ls.TenantID, req.SessionID)
	if !ok || !session.HasClient(ls.AuthParams.ClientID) {
		return as.errorResponse(ls.AuthParams, loginRequired())
	}
	as.metrics.Login(ls.TenantID, MethodSession, true)
	return as.CompleteAuth(ctx, Completion{
		LoginSession:      ls,
		User:              user,
		ExistingSessionID: session.ID,
		Silent:            true,
		Request:           req,
	})
}

// activeSession returns the session from the cookie when it is active and its user can still
// log in. Lookup failures count as no session.
func (as *AuthorizationService) activeSession(ctx context.Context, tenantID, sessionID string) (*sessions.Session, *users.User, bool) {
	if sessionID == "" {
		return nil, nil, false
	}
	session, err := as.repos.Sessions.Get(ctx, tenantID, sessionID)
	if err != nil {
		if !errors.Is(err, sessions.ErrSessionNotFound) {
			as.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("session lookup failed")
		}
		return nil, nil, false
	}
	if !session.IsActive(as.nowTime()) {
		return nil, nil, false
	}
	user, err := as.repos.Users.Get(ctx, tenantID, session.UserID)
	if err != nil || user.Blocked {
		return nil, nil, false
	}
	return session, user, true
}
