package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/connections"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// UpstreamCallbackPath receives the authorization response of upstream providers.
const UpstreamCallbackPath = "/callback"

// UpstreamIdentity is the verified identity returned by an upstream provider.
type UpstreamIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	FamilyName    string
	Picture       string
}

// UpstreamProvider relays a login to the provider configured on an oidc connection.
type UpstreamProvider interface {
	AuthCodeURL(ctx context.Context, conn *connections.Connection, redirectURI, state, verifier, nonce string) (string, error)
	// Exchange redeems the upstream code and returns the identity from the verified id_token.
	Exchange(ctx context.Context, conn *connections.Connection, redirectURI, code, verifier, nonce string) (*UpstreamIdentity, error)
}

var _ UpstreamProvider = (*OIDCUpstream)(nil)

// OIDCUpstream discovers providers by issuer and keeps them for reuse.
type OIDCUpstream struct {
	mu        sync.Mutex
	providers map[string]*oidc.Provider
}

func NewOIDCUpstream() *OIDCUpstream {
	return &OIDCUpstream{providers: make(map[string]*oidc.Provider)}
}

func (u *OIDCUpstream) provider(ctx context.Context, issuer string) (*oidc.Provider, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.providers[issuer]; ok {
		return p, nil
	}
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[OIDCUpstream.provider] NewProvider")
	}
	u.providers[issuer] = p
	return p, nil
}

func (u *OIDCUpstream) config(ctx context.Context, conn *connections.Connection, redirectURI string) (*oauth2.Config, *oidc.Provider, error) {
	p, err := u.provider(ctx, conn.Options.Issuer)
	if err != nil {
		return nil, nil, err
	}
	scopes := conn.Options.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}
	return &oauth2.Config{
		ClientID:     conn.Options.ClientID,
		ClientSecret: conn.Options.ClientSecret,
		Endpoint:     p.Endpoint(),
		RedirectURL:  redirectURI,
		Scopes:       scopes,
	}, p, nil
}

func (u *OIDCUpstream) AuthCodeURL(ctx context.Context, conn *connections.Connection, redirectURI, state, verifier, nonce string) (string, error) {
	cfg, _, err := u.config(ctx, conn, redirectURI)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier), oidc.Nonce(nonce)), nil
}

func (u *OIDCUpstream) Exchange(ctx context.Context, conn *connections.Connection, redirectURI, code, verifier, nonce string) (*UpstreamIdentity, error) {
	cfg, p, err := u.config(ctx, conn, redirectURI)
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrap(err, "[OIDCUpstream.Exchange] Exchange")
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("[OIDCUpstream.Exchange] no id_token in token response")
	}
	idToken, err := p.Verifier(&oidc.Config{ClientID: cfg.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[OIDCUpstream.Exchange] Verify")
	}

	var claims struct {
		Nonce         string `json:"nonce"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[OIDCUpstream.Exchange] Claims")
	}
	if claims.Nonce != nonce {
		return nil, errors.New("[OIDCUpstream.Exchange] nonce mismatch")
	}
	return &UpstreamIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Picture:       claims.Picture,
	}, nil
}

// StartUpstreamLogin stores an oauth2_state code holding the PKCE verifier and nonce of the
// upstream request and redirects to the provider. The code id is the upstream state.
func (as *AuthorizationService) StartUpstreamLogin(ctx context.Context, ls *loginsessions.LoginSession, conn *connections.Connection) Result {
	tenant, err := as.tenant(ctx, ls.TenantID)
	if err != nil {
		return Fail(err)
	}
	nonce, err := randomToken(16)
	if err != nil {
		return Fail(transient("[AuthorizationService.StartUpstreamLogin] nonce", err))
	}
	verifier := oauth2.GenerateVerifier()

	state, err := as.codes.Issue(ctx, codes.Code{
		TenantID:     ls.TenantID,
		CodeType:     codes.TypeOAuth2State,
		LoginID:      ls.ID,
		ConnectionID: conn.ID,
		CodeVerifier: verifier,
		Nonce:        nonce,
		RedirectURI:  ls.AuthParams.RedirectURI,
	})
	if err != nil {
		return Fail(transient("[AuthorizationService.StartUpstreamLogin] Issue", err))
	}
	as.metrics.CodeIssued(ls.TenantID, string(codes.TypeOAuth2State))

	ls.AuthConnection = conn.Name
	ls.AuthStrategy = string(conn.Strategy)
	if err := as.loginSessions.Save(ctx, ls); err != nil {
		return Fail(transient("[AuthorizationService.StartUpstreamLogin] Save", err))
	}

	u, err := as.upstream.AuthCodeURL(ctx, conn, as.absoluteURL(tenant, UpstreamCallbackPath), state.CodeID, verifier, nonce)
	if err != nil {
		return Fail(transient("[AuthorizationService.StartUpstreamLogin] AuthCodeURL", err))
	}
	return Redirect(u)
}

// UpstreamCallback finishes an upstream login. The state code is redeemed before anything else,
// so a replayed callback is not found.
func (as *AuthorizationService) UpstreamCallback(ctx context.Context, tenantID, state, code, upstreamError string, req RequestInfo) Result {
	stateCode, err := as.codes.Redeem(ctx, tenantID, state, codes.TypeOAuth2State)
	if errors.Is(err, codes.ErrCodeNotFound) {
		as.metrics.CodeRedeemed(tenantID, string(codes.TypeOAuth2State), false)
		return Fail(notFound("The login attempt has expired. Please start again.", err))
	}
	if err != nil {
		return Fail(transient("[AuthorizationService.UpstreamCallback] Redeem", err))
	}
	as.metrics.CodeRedeemed(tenantID, string(codes.TypeOAuth2State), true)

	ls, err := as.LoginSession(ctx, tenantID, stateCode.LoginID)
	if err != nil {
		return Fail(err)
	}
	if upstreamError != "" {
		return as.errorResponse(ls.AuthParams, apperrors.Denied("The identity provider rejected the login: "+upstreamError, nil))
	}

	tenant, err := as.tenant(ctx, tenantID)
	if err != nil {
		return Fail(err)
	}
	conn, err := as.repos.Connections.Get(ctx, tenantID, stateCode.ConnectionID)
	if err != nil {
		return Fail(transient("[AuthorizationService.UpstreamCallback] connection", err))
	}
	identity, err := as.upstream.Exchange(ctx, conn, as.absoluteURL(tenant, UpstreamCallbackPath), code, stateCode.CodeVerifier, stateCode.Nonce)
	if err != nil {
		as.logger.Warn().Err(err).Str("tenant_id", tenantID).Str("login_session_id", ls.ID).Msg("upstream exchange failed")
		return as.errorResponse(ls.AuthParams, apperrors.Denied("The identity provider login could not be verified.", err))
	}

	user, err := as.upstreamUser(ctx, conn, identity, req)
	if err != nil {
		return Fail(err)
	}
	ls.AuthParams.Username = identity.Email
	if ls.AuthParams.Username == "" {
		ls.AuthParams.Username = identity.Subject
	}
	return as.finishLogin(ctx, ls, user, MethodUpstream, req)
}

// upstreamUser finds the user of an upstream identity, refreshing its profile, or creates it
// linked to an existing user with the same verified email.
func (as *AuthorizationService) upstreamUser(ctx context.Context, conn *connections.Connection, identity *UpstreamIdentity, req RequestInfo) (*users.User, error) {
	now := as.nowTime()
	user, err := as.repos.Users.FindBySubject(ctx, conn.TenantID, conn.Name, identity.Subject)
	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		return nil, transient("[AuthorizationService.upstreamUser] FindBySubject", err)
	}
	if user != nil {
		user.Email = identity.Email
		user.EmailVerified = identity.EmailVerified
		user.Name = identity.Name
		user.GivenName = identity.GivenName
		user.FamilyName = identity.FamilyName
		user.Picture = identity.Picture
		user.UpdatedAt = now
		if err := as.repos.Users.Update(ctx, user); err != nil {
			return nil, transient("[AuthorizationService.upstreamUser] Update", err)
		}
		return user, nil
	}

	user = &users.User{
		ID:            conn.Provider() + "|" + uuid.NewString(),
		TenantID:      conn.TenantID,
		Provider:      conn.Provider(),
		Connection:    conn.Name,
		Subject:       identity.Subject,
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		Name:          identity.Name,
		GivenName:     identity.GivenName,
		FamilyName:    identity.FamilyName,
		Picture:       identity.Picture,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := as.linkToVerifiedEmail(ctx, user, req); err != nil {
		return nil, err
	}
	if err := as.repos.Users.Create(ctx, user); err != nil {
		return nil, transient("[AuthorizationService.upstreamUser] Create", err)
	}
	return user, nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
