package auth

import (
	"context"
	"crypto/subtle"
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/codes"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/oauthmodel"
	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/token/refresh"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

const (
	grantTypeClientCredentials = "client-credentials"
	tokenTypeBearer            = "Bearer"
)

// Token handles the OAuth 2.0 token request.
func (as *AuthorizationService) Token(ctx context.Context, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	tenant, err := as.tenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	client, err := as.authenticateClient(ctx, tenant.ID, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	switch req.GrantType {
	case oauthmodel.AuthorizationCodeGrant:
		return as.authorizationCodeGrant(ctx, tenant, client, req)
	case oauthmodel.ClientCredentialsCodeGrant:
		return as.clientCredentialsGrant(ctx, tenant, client, req)
	case oauthmodel.RefreshTokenCodeGrant:
		return as.refreshTokenGrant(ctx, tenant, client, req)
	default:
		return nil, &apperrors.Error{Kind: apperrors.KindValidation, Code: CodeUnsupportedGrant, Message: "Unsupported grant type", Err: apperrors.ErrUnsupported}
	}
}

// authenticateClient checks the secret of confidential clients. Public clients authenticate
// with PKCE instead.
func (as *AuthorizationService) authenticateClient(ctx context.Context, tenantID, clientID, secret string) (*clients.Client, error) {
	client, err := as.client(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if client.IsPublic() {
		return client, nil
	}
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(client.Secret)) != 1 {
		return nil, invalidClient("Client authentication failed")
	}
	return client, nil
}

func (as *AuthorizationService) authorizationCodeGrant(ctx context.Context, tenant *tenants.Tenant, client *clients.Client, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	code, err := as.codes.Lookup(ctx, tenant.ID, req.Code, codes.TypeAuthorizationCode)
	if errors.Is(err, codes.ErrCodeNotFound) {
		as.metrics.CodeRedeemed(tenant.ID, string(codes.TypeAuthorizationCode), false)
		return nil, invalidGrant("Invalid authorization code")
	}
	if err != nil {
		return nil, transient("[AuthorizationService.authorizationCodeGrant] Lookup", err)
	}

	ls, err := as.loginSessions.Get(ctx, tenant.ID, code.LoginID)
	if errors.Is(err, loginsessions.ErrLoginSessionNotFound) {
		return nil, invalidGrant("Invalid authorization code")
	}
	if err != nil {
		return nil, transient("[AuthorizationService.authorizationCodeGrant] Get", err)
	}
	params := ls.AuthParams
	if params.ClientID != client.ID {
		return nil, invalidGrant("The authorization code was issued to another client")
	}
	if code.RedirectURI != req.RedirectURI {
		return nil, invalidGrant("redirect_uri does not match the authorization request")
	}
	if code.CodeChallenge != "" || client.IsPublic() {
		if !oauthmodel.VerifyCodeChallenge(code.CodeChallenge, oauthmodel.CodeMethodType(code.CodeChallengeMethod), req.CodeVerifier) {
			return nil, invalidGrant("PKCE verification failed")
		}
	}

	if err := as.codes.Consume(ctx, code); err != nil {
		if errors.Is(err, codes.ErrCodeNotFound) {
			as.metrics.CodeRedeemed(tenant.ID, string(codes.TypeAuthorizationCode), false)
			return nil, invalidGrant("Invalid authorization code")
		}
		return nil, transient("[AuthorizationService.authorizationCodeGrant] Consume", err)
	}
	as.metrics.CodeRedeemed(tenant.ID, string(codes.TypeAuthorizationCode), true)

	user, err := as.repos.Users.Get(ctx, tenant.ID, code.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, invalidGrant("The user no longer exists")
	}
	if err != nil {
		return nil, transient("[AuthorizationService.authorizationCodeGrant] user", err)
	}

	return as.userTokens(ctx, tenant, userTokenRequest{
		clientID:     client.ID,
		audience:     params.Audience,
		scope:        params.Scopes(),
		nonce:        code.Nonce,
		user:         user,
		sessionID:    ls.SessionID,
		orgID:        ls.StateData.OrganizationID,
		actorID:      ls.StateData.ImpersonatorID,
		grantType:    string(oauthmodel.AuthorizationCodeGrant),
		issueRefresh: true,
	})
}

func (as *AuthorizationService) clientCredentialsGrant(ctx context.Context, tenant *tenants.Tenant, client *clients.Client, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if client.IsPublic() {
		return nil, unauthorizedClient("Public clients cannot use client credentials")
	}
	claims, audience, err := as.clientAccessClaims(ctx, tenant, client.ID, req.Audience, oauthmodel.SplitScope(req.Scope))
	if err != nil {
		return nil, err
	}
	accessToken, err := as.tokens.CreateAccessToken(tenant, token.AccessTokenRequest{
		Subject:   client.ID + "@clients",
		ClientID:  client.ID,
		Audience:  audience,
		Claims:    claims,
		GrantType: grantTypeClientCredentials,
	})
	if err != nil {
		return nil, transient("[AuthorizationService.clientCredentialsGrant] CreateAccessToken", err)
	}
	return &oauthmodel.TokenResponse{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int(as.tokens.AccessTokenExpiry().Seconds()),
		Scope:       oauthmodel.JoinScope(claims.Scope),
	}, nil
}

// refreshTokenGrant requires the refresh token and the session it belongs to to be active.
// Both idle expiries slide forward.
func (as *AuthorizationService) refreshTokenGrant(ctx context.Context, tenant *tenants.Tenant, client *clients.Client, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	rt, err := as.repos.RefreshTokens.Get(ctx, tenant.ID, req.RefreshToken)
	if errors.Is(err, refresh.ErrRefreshTokenNotFound) {
		return nil, invalidGrant("Invalid refresh token")
	}
	if err != nil {
		return nil, transient("[AuthorizationService.refreshTokenGrant] Get", err)
	}
	if rt.ClientID != client.ID {
		return nil, invalidGrant("The refresh token was issued to another client")
	}

	now := as.nowTime()
	var session *sessions.Session
	if rt.SessionID != "" {
		session, err = as.repos.Sessions.Get(ctx, tenant.ID, rt.SessionID)
		if err != nil && !errors.Is(err, sessions.ErrSessionNotFound) {
			return nil, transient("[AuthorizationService.refreshTokenGrant] session", err)
		}
		if session == nil || !session.IsActive(now) {
			return nil, invalidGrant("The session of the refresh token has ended")
		}
	}

	rt, err = as.refresh.Use(ctx, tenant.ID, rt.ID)
	if errors.Is(err, refresh.ErrRefreshTokenInactive) || errors.Is(err, refresh.ErrRefreshTokenNotFound) {
		return nil, invalidGrant("Invalid refresh token")
	}
	if err != nil {
		return nil, transient("[AuthorizationService.refreshTokenGrant] Use", err)
	}

	if session != nil {
		session.Touch(now, tenant.GetIdleSessionLifetime(), "", "")
		if session.IdleExpiresAt.After(session.ExpiresAt) {
			session.IdleExpiresAt = session.ExpiresAt
		}
		if err := as.repos.Sessions.Update(ctx, session); err != nil {
			return nil, transient("[AuthorizationService.refreshTokenGrant] Update", err)
		}
	}

	user, err := as.repos.Users.Get(ctx, tenant.ID, rt.UserID)
	if err != nil {
		return nil, invalidGrant("The user no longer exists")
	}
	if user.Blocked {
		return nil, apperrors.Denied("The user is blocked.", apperrors.ErrUserBlocked)
	}

	resp, err := as.userTokens(ctx, tenant, userTokenRequest{
		clientID:  client.ID,
		audience:  rt.Audience,
		scope:     oauthmodel.SplitScope(rt.Scope),
		user:      user,
		sessionID: rt.SessionID,
		grantType: string(oauthmodel.RefreshTokenCodeGrant),
	})
	if err != nil {
		return nil, err
	}
	resp.RefreshToken = rt.ID
	return resp, nil
}

type userTokenRequest struct {
	clientID     string
	audience     string
	scope        []string
	nonce        string
	user         *users.User
	sessionID    string
	orgID        string
	actorID      string
	grantType    string
	issueRefresh bool
}

func (as *AuthorizationService) userTokens(ctx context.Context, tenant *tenants.Tenant, r userTokenRequest) (*oauthmodel.TokenResponse, error) {
	claims, err := as.userAccessClaims(ctx, tenant, r.audience, r.scope, r.user.ID)
	if err != nil {
		return nil, err
	}
	accessToken, err := as.tokens.CreateAccessToken(tenant, token.AccessTokenRequest{
		Subject:   r.user.ID,
		ClientID:  r.clientID,
		Audience:  r.audience,
		Claims:    claims,
		SessionID: r.sessionID,
		OrgID:     r.orgID,
		ActorID:   r.actorID,
	})
	if err != nil {
		return nil, transient("[AuthorizationService.userTokens] CreateAccessToken", err)
	}
	resp := &oauthmodel.TokenResponse{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int(as.tokens.AccessTokenExpiry().Seconds()),
		Scope:       oauthmodel.JoinScope(claims.Scope),
	}

	if slices.Contains(r.scope, oauthmodel.ScopeOpenID) {
		idToken, err := as.tokens.CreateIDToken(tenant, token.IDTokenRequest{
			User:      r.user,
			ClientID:  r.clientID,
			Nonce:     r.nonce,
			SessionID: r.sessionID,
			OrgID:     r.orgID,
		})
		if err != nil {
			return nil, transient("[AuthorizationService.userTokens] CreateIDToken", err)
		}
		resp.IDToken = idToken
	}

	if r.issueRefresh && slices.Contains(r.scope, oauthmodel.ScopeOfflineAccess) {
		allowed, err := as.offlineAllowed(ctx, tenant, r.audience)
		if err != nil {
			return nil, err
		}
		if allowed {
			rt, err := as.refresh.Create(ctx, refresh.RefreshToken{
				TenantID:  tenant.ID,
				ClientID:  r.clientID,
				UserID:    r.user.ID,
				SessionID: r.sessionID,
				Scope:     oauthmodel.JoinScope(r.scope),
				Audience:  r.audience,
			})
			if err != nil {
				return nil, transient("[AuthorizationService.userTokens] refresh.Create", err)
			}
			resp.RefreshToken = rt.ID
		}
	}
	return resp, nil
}

// offlineAllowed reports whether refresh tokens may be issued for audience. Tokens without a
// registered resource server always may.
func (as *AuthorizationService) offlineAllowed(ctx context.Context, tenant *tenants.Tenant, audience string) (bool, error) {
	rs, _, err := as.resourceServer(ctx, tenant, audience)
	if err != nil {
		return false, err
	}
	return rs == nil || rs.AllowOffline, nil
}

// UserInfo returns the claims of a valid access token of the tenant together with the
// user's current profile.
func (as *AuthorizationService) UserInfo(ctx context.Context, tenantID, rawToken string) (map[string]any, error) {
	tenant, err := as.tenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	claims, err := as.tokens.Verify(tenant, rawToken)
	if err != nil {
		return nil, &apperrors.Error{Kind: apperrors.KindAuthorizationDenied, Code: "invalid_token", Message: "Invalid access token", Err: err}
	}
	sub, _ := claims.GetSubject()
	user, err := as.repos.Users.Get(ctx, tenant.ID, sub)
	if err != nil {
		return nil, &apperrors.Error{Kind: apperrors.KindAuthorizationDenied, Code: "invalid_token", Message: "Invalid access token", Err: err}
	}
	info := map[string]any{"sub": user.ID}
	setClaim(info, "name", user.DisplayName())
	setClaim(info, "nickname", user.Username)
	setClaim(info, "picture", user.Picture)
	if user.Email != "" {
		info["email"] = user.Email
		info["email_verified"] = user.EmailVerified
	}
	if user.PhoneNumber != "" {
		info["phone_number"] = user.PhoneNumber
		info["phone_number_verified"] = user.PhoneVerified
	}
	if org, ok := claims["org_id"].(string); ok {
		info["org_id"] = org
	}
	return info, nil
}

func setClaim(claims jwt.MapClaims, name, value string) {
	if value != "" {
		claims[name] = value
	}
}
