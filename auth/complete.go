package auth

import (
	"context"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/hooks"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/oauthmodel"
	"github.com/jrsteele09/go-auth-engine/organizations"
	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

// Completion is the input of the response assembler.
type Completion struct {
	LoginSession *loginsessions.LoginSession
	User         *users.User
	// ExistingSessionID links the authentication to a session instead of creating one.
	ExistingSessionID string
	Impersonator      *users.User
	SkipHooks         bool
	// Silent is set for prompt=none, where no screen may be shown.
	Silent  bool
	Request RequestInfo
}

// CompleteAuth enforces organization membership, runs the post-login hook, materializes the
// session and returns the authorization response for the login session's request.
func (as *AuthorizationService) CompleteAuth(ctx context.Context, c Completion) Result {
	ls := c.LoginSession
	params := ls.AuthParams
	if ls.State == loginsessions.StateCompleted {
		return Fail(notFound("This login has already been completed.", nil))
	}

	tenant, err := as.tenant(ctx, ls.TenantID)
	if err != nil {
		return Fail(err)
	}
	client, err := as.client(ctx, ls.TenantID, params.ClientID)
	if err != nil {
		return Fail(err)
	}

	if params.Organization != "" {
		orgID, err := as.enforceOrganization(ctx, ls, client, c.User, c.Request)
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindTransient {
				return Fail(err)
			}
			return as.errorResponse(params, err)
		}
		ls.StateData.OrganizationID = orgID
	}

	if !c.SkipHooks {
		decision, err := as.gate.PostLogin(ctx, hooks.LoginEvent{
			TenantID:       ls.TenantID,
			ClientID:       client.ID,
			ConnectionID:   ls.AuthConnection,
			LoginSessionID: ls.ID,
			Organization:   ls.StateData.OrganizationID,
			IP:             c.Request.IP,
			User:           c.User,
		})
		if err != nil {
			return Fail(transient("[AuthorizationService.CompleteAuth] PostLogin", err))
		}
		switch decision.Action {
		case hooks.ActionDeny:
			as.emit(ctx, audit.Event{
				Type:           audit.EventPostLoginDenied,
				TenantID:       ls.TenantID,
				UserID:         c.User.ID,
				ClientID:       client.ID,
				LoginSessionID: ls.ID,
				IP:             c.Request.IP,
				Error:          decision.Reason,
			})
			return as.errorResponse(params, apperrors.Denied(decision.Reason, nil))
		case hooks.ActionRequireForm:
			if c.Silent {
				return as.errorResponse(params, &apperrors.Error{
					Kind:    apperrors.KindAuthorizationDenied,
					Code:    CodeInteractionRequired,
					Message: "Interaction required",
				})
			}
			if err := as.loginSessions.AwaitHook(ctx, ls, c.User.ID, decision.FormID, decision.NodeID); err != nil {
				return Fail(transient("[AuthorizationService.CompleteAuth] AwaitHook", err))
			}
			return Redirect(FormNodePath(decision.FormID, decision.NodeID, ls.ID))
		}
	}

	session, err := as.materializeSession(ctx, tenant, client, ls, c)
	if err != nil {
		return Fail(err)
	}

	ls.StateData.UserID = c.User.ID
	if c.Impersonator != nil {
		ls.StateData.ImpersonatorID = c.Impersonator.ID
	}
	if err := as.loginSessions.Complete(ctx, ls, session.ID); err != nil {
		return Fail(transient("[AuthorizationService.CompleteAuth] Complete", err))
	}

	values, err := as.authorizationResponse(ctx, tenant, ls, c.User, session)
	if err != nil {
		return Fail(err)
	}
	return as.deliver(params, values, as.sessionCookie(session))
}

func (as *AuthorizationService) enforceOrganization(ctx context.Context, ls *loginsessions.LoginSession, client *clients.Client, user *users.User, req RequestInfo) (string, error) {
	deny := func(reason string, cause error) (string, error) {
		as.emit(ctx, audit.Event{
			Type:           audit.EventOrganizationDenied,
			TenantID:       ls.TenantID,
			UserID:         user.ID,
			ClientID:       client.ID,
			LoginSessionID: ls.ID,
			IP:             req.IP,
			Error:          reason,
			Metadata:       map[string]string{"organization": ls.AuthParams.Organization},
		})
		return "", apperrors.Denied(reason, cause)
	}

	org, err := as.repos.Organizations.Get(ctx, ls.TenantID, ls.AuthParams.Organization)
	if errors.Is(err, organizations.ErrOrganizationNotFound) {
		return deny("The organization does not exist.", apperrors.ErrNotOrgMember)
	}
	if err != nil {
		return "", transient("[AuthorizationService.enforceOrganization] Get", err)
	}
	member, err := organizations.IsVerifiedMember(ctx, as.repos.Organizations, ls.TenantID, org.ID, user.ID)
	if err != nil {
		return "", transient("[AuthorizationService.enforceOrganization] IsVerifiedMember", err)
	}
	if !member {
		return deny("The user is not a member of the organization.", apperrors.ErrNotOrgMember)
	}
	return org.ID, nil
}

// materializeSession links the authentication to an existing active session of the same user
// or creates a new session.
func (as *AuthorizationService) materializeSession(ctx context.Context, tenant *tenants.Tenant, client *clients.Client, ls *loginsessions.LoginSession, c Completion) (*sessions.Session, error) {
	now := as.nowTime()
	if c.ExistingSessionID != "" {
		s, err := as.repos.Sessions.Get(ctx, tenant.ID, c.ExistingSessionID)
		if err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
			return nil, transient("[AuthorizationService.materializeSession] Get", err)
		}
		if err == nil && s.IsActive(now) && s.UserID == c.User.ID {
			s.AddClient(client.ID)
			s.Touch(now, tenant.GetIdleSessionLifetime(), c.Request.IP, c.Request.UserAgent)
			if s.IdleExpiresAt.After(s.ExpiresAt) {
				s.IdleExpiresAt = s.ExpiresAt
			}
			if err := as.repos.Sessions.Update(ctx, s); err != nil {
				return nil, transient("[AuthorizationService.materializeSession] Update", err)
			}
			return s, nil
		}
	}

	s := &sessions.Session{
		ID:             uuid.NewString(),
		TenantID:       tenant.ID,
		UserID:         c.User.ID,
		LoginSessionID: ls.ID,
		Clients:        []string{client.ID},
		Device: sessions.Device{
			InitialIP:        c.Request.IP,
			InitialUserAgent: c.Request.UserAgent,
			LastIP:           c.Request.IP,
			LastUserAgent:    c.Request.UserAgent,
		},
		CreatedAt:       now,
		UpdatedAt:       now,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(tenant.GetSessionLifetime()),
		IdleExpiresAt:   now.Add(tenant.GetIdleSessionLifetime()),
		UsedAt:          &now,
	}
	if err := as.repos.Sessions.Create(ctx, s); err != nil {
		return nil, transient("[AuthorizationService.materializeSession] Create", err)
	}
	return s, nil
}

// authorizationResponse builds the front-channel parameters for the response type.
func (as *AuthorizationService) authorizationResponse(ctx context.Context, tenant *tenants.Tenant, ls *loginsessions.LoginSession, user *users.User, session *sessions.Session) (url.Values, error) {
	params := ls.AuthParams
	values := url.Values{}
	if params.State != "" {
		values.Set("state", params.State)
	}

	if params.ResponseType == oauthmodel.CodeResponseType {
		code, err := as.codes.Issue(ctx, codes.Code{
			TenantID:            tenant.ID,
			CodeType:            codes.TypeAuthorizationCode,
			LoginID:             ls.ID,
			UserID:              user.ID,
			RedirectURI:         params.RedirectURI,
			CodeChallenge:       params.CodeChallenge,
			CodeChallengeMethod: string(params.CodeChallengeMethod),
			Nonce:               params.Nonce,
		})
		if err != nil {
			return nil, transient("[AuthorizationService.authorizationResponse] Issue", err)
		}
		as.metrics.CodeIssued(tenant.ID, string(codes.TypeAuthorizationCode))
		values.Set("code", code.CodeID)
		return values, nil
	}

	if params.ReturnsAccessToken() {
		claims, err := as.userAccessClaims(ctx, tenant, params.Audience, params.Scopes(), user.ID)
		if err != nil {
			return nil, err
		}
		accessToken, err := as.tokens.CreateAccessToken(tenant, token.AccessTokenRequest{
			Subject:   user.ID,
			ClientID:  params.ClientID,
			Audience:  params.Audience,
			Claims:    claims,
			SessionID: session.ID,
			OrgID:     ls.StateData.OrganizationID,
			ActorID:   ls.StateData.ImpersonatorID,
		})
		if err != nil {
			return nil, transient("[AuthorizationService.authorizationResponse] CreateAccessToken", err)
		}
		values.Set("access_token", accessToken)
		values.Set("token_type", "Bearer")
		values.Set("expires_in", strconv.Itoa(int(as.tokens.AccessTokenExpiry().Seconds())))
		if scope := oauthmodel.JoinScope(claims.Scope); scope != "" {
			values.Set("scope", scope)
		}
	}

	if params.ReturnsIDToken() {
		idToken, err := as.tokens.CreateIDToken(tenant, token.IDTokenRequest{
			User:      user,
			ClientID:  params.ClientID,
			Nonce:     params.Nonce,
			SessionID: session.ID,
			OrgID:     ls.StateData.OrganizationID,
			AuthTime:  session.AuthenticatedAt,
		})
		if err != nil {
			return nil, transient("[AuthorizationService.authorizationResponse] CreateIDToken", err)
		}
		values.Set("id_token", idToken)
	}
	return values, nil
}
