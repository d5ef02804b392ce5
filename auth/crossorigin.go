package auth

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/jrsteele09/go-auth-engine/connections"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
	"github.com/jrsteele09/go-auth-engine/notify"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

// Credential types accepted by cross-origin authentication.
const (
	CredentialPassword = "password"
	CredentialOTP      = "otp"
)

// CrossOriginRequest is a credential posted from a client's web origin.
type CrossOriginRequest struct {
	TenantID       string
	ClientID       string
	Origin         string
	CredentialType string
	// Realm is the connection name the credential belongs to.
	Realm    string
	Username string
	Password string
	OTP      string
	IP       string
}

// CrossOriginResult carries the login ticket the client exchanges at /authorize.
type CrossOriginResult struct {
	LoginTicket string `json:"login_ticket"`
	CoVerifier  string `json:"co_verifier"`
	CoID        string `json:"co_id"`
}

func (as *AuthorizationService) crossOriginClient(ctx context.Context, tenantID, clientID, origin string) (*clients.Client, error) {
	client, err := as.client(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if !client.CrossOriginAuth || !client.AllowsOrigin(origin) {
		return nil, unauthorizedClient("Cross origin login is not allowed for this origin")
	}
	return client, nil
}

func (as *AuthorizationService) realm(ctx context.Context, client *clients.Client, name string) (*connections.Connection, error) {
	if !client.HasConnection(name) {
		return nil, invalidRequest("The connection is not enabled for the application.", connections.ErrConnectionNotFound)
	}
	conn, err := as.repos.Connections.GetByName(ctx, client.TenantID, name)
	if errors.Is(err, connections.ErrConnectionNotFound) {
		return nil, invalidRequest("The connection does not exist.", err)
	}
	if err != nil {
		return nil, transient("[AuthorizationService.realm] GetByName", err)
	}
	return conn, nil
}

// StartPasswordless sends a one-time code for a later cross-origin OTP login. The code is
// bound to the normalized identifier instead of a login session.
func (as *AuthorizationService) StartPasswordless(ctx context.Context, req CrossOriginRequest) error {
	tenant, err := as.tenant(ctx, req.TenantID)
	if err != nil {
		return err
	}
	client, err := as.crossOriginClient(ctx, tenant.ID, req.ClientID, req.Origin)
	if err != nil {
		return err
	}
	conn, err := as.realm(ctx, client, req.Realm)
	if err != nil {
		return err
	}
	if conn.Strategy != connections.StrategyEmail && conn.Strategy != connections.StrategySMS {
		return invalidRequest("The connection does not support one-time codes.", apperrors.ErrUnsupported)
	}
	id, err := ClassifyIdentifier(req.Username, tenant.GetDefaultCountry())
	if err != nil {
		return err
	}
	if !connectionAccepts(conn, id.Type) {
		return apperrors.Validation("username", "The identifier does not match the connection.")
	}

	code, err := as.codes.Issue(ctx, codes.Code{
		TenantID:     tenant.ID,
		CodeType:     codes.TypeOTP,
		ConnectionID: conn.ID,
		CodeVerifier: id.Normalized,
	})
	if err != nil {
		return transient("[AuthorizationService.StartPasswordless] Issue", err)
	}
	as.metrics.CodeIssued(tenant.ID, string(codes.TypeOTP))

	to := notify.Recipient{TenantID: tenant.ID, Address: id.Normalized, Channel: notify.ChannelEmail}
	if id.Type == IdentifierPhone {
		to.Channel = notify.ChannelSMS
	}
	if err := as.notifier.SendCode(ctx, to, code.CodeID, tenant.DefaultLocale); err != nil {
		as.logger.Warn().Err(err).Str("tenant_id", tenant.ID).Msg("code delivery failed")
	}
	return nil
}

// CrossOriginAuthenticate verifies a password (through the lockout tracker) or a one-time code
// and issues a login ticket bound to the client.
func (as *AuthorizationService) CrossOriginAuthenticate(ctx context.Context, req CrossOriginRequest) (*CrossOriginResult, error) {
	tenant, err := as.tenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	client, err := as.crossOriginClient(ctx, tenant.ID, req.ClientID, req.Origin)
	if err != nil {
		return nil, err
	}
	conn, err := as.realm(ctx, client, req.Realm)
	if err != nil {
		return nil, err
	}
	id, err := ClassifyIdentifier(req.Username, tenant.GetDefaultCountry())
	if err != nil {
		return nil, err
	}

	var user *users.User
	switch req.CredentialType {
	case CredentialPassword:
		if !conn.IsPasswordRealm() {
			return nil, invalidRequest("The connection does not support passwords.", apperrors.ErrUnsupported)
		}
		user, err = as.crossOriginPassword(ctx, tenant.ID, client.ID, id.Normalized, req)
	case CredentialOTP:
		user, err = as.crossOriginOTP(ctx, tenant.ID, conn, id.Normalized, req)
	default:
		return nil, invalidRequest("Unsupported credential type", apperrors.ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}

	coVerifier, err := randomToken(24)
	if err != nil {
		return nil, transient("[AuthorizationService.CrossOriginAuthenticate] verifier", err)
	}
	ticket, err := as.codes.Issue(ctx, codes.Code{
		TenantID:     tenant.ID,
		CodeType:     codes.TypeTicket,
		ConnectionID: conn.ID,
		UserID:       user.ID,
		CodeVerifier: client.ID + "|" + coVerifier,
	})
	if err != nil {
		return nil, transient("[AuthorizationService.CrossOriginAuthenticate] Issue", err)
	}
	as.metrics.CodeIssued(tenant.ID, string(codes.TypeTicket))
	coID, err := randomToken(9)
	if err != nil {
		return nil, transient("[AuthorizationService.CrossOriginAuthenticate] co_id", err)
	}
	return &CrossOriginResult{LoginTicket: ticket.CodeID, CoVerifier: coVerifier, CoID: coID}, nil
}

func (as *AuthorizationService) crossOriginPassword(ctx context.Context, tenantID, clientID, username string, req CrossOriginRequest) (*users.User, error) {
	user, primary, err := as.passwordUser(ctx, tenantID, username)
	if err != nil {
		return nil, err
	}
	event := audit.Event{TenantID: tenantID, ClientID: clientID, IP: req.IP}
	if primary != nil {
		event.UserID = primary.ID
		if as.lockout.IsLockedOut(primary) {
			as.metrics.Lockout(tenantID)
			event.Type = audit.EventLockedOut
			event.Error = apperrors.ErrTooManyFailedLogins.Error()
			as.emit(ctx, event)
			return nil, apperrors.LockedOut()
		}
	}
	ok, err := as.checkPassword(ctx, user, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		if primary != nil {
			if _, err := as.lockout.RecordFailure(ctx, primary); err != nil {
				return nil, transient("[AuthorizationService.crossOriginPassword] RecordFailure", err)
			}
		}
		as.metrics.Login(tenantID, MethodPassword, false)
		event.Type = audit.EventLoginFailed
		event.Error = apperrors.ErrInvalidCredentials.Error()
		as.emit(ctx, event)
		return nil, invalidCredentials()
	}
	if err := as.lockout.Clear(ctx, primary); err != nil {
		return nil, transient("[AuthorizationService.crossOriginPassword] Clear", err)
	}
	return user, nil
}

func (as *AuthorizationService) crossOriginOTP(ctx context.Context, tenantID string, conn *connections.Connection, identifier string, req CrossOriginRequest) (*users.User, error) {
	code, err := as.codes.Lookup(ctx, tenantID, strings.TrimSpace(req.OTP), codes.TypeOTP)
	if err == nil && (code.LoginID != "" || code.CodeVerifier != identifier || code.ConnectionID != conn.ID) {
		err = codes.ErrCodeNotFound
	}
	if err == nil {
		err = as.codes.Consume(ctx, code)
	}
	if errors.Is(err, codes.ErrCodeNotFound) {
		as.metrics.CodeRedeemed(tenantID, string(codes.TypeOTP), false)
		return nil, invalidCode()
	}
	if err != nil {
		return nil, transient("[AuthorizationService.crossOriginOTP] redeem", err)
	}
	as.metrics.CodeRedeemed(tenantID, string(codes.TypeOTP), true)

	ls := &loginsessions.LoginSession{TenantID: tenantID}
	ls.AuthParams.Username = identifier
	return as.passwordlessUser(ctx, ls, conn, RequestInfo{IP: req.IP})
}

// redeemLoginTicket completes a login session from a cross-origin login ticket. The ticket is
// single use and must have been issued to the requesting client.
func (as *AuthorizationService) redeemLoginTicket(ctx context.Context, ls *loginsessions.LoginSession, req RequestInfo) Result {
	ticket, err := as.codes.Redeem(ctx, ls.TenantID, ls.AuthParams.LoginTicket, codes.TypeTicket)
	if errors.Is(err, codes.ErrCodeNotFound) {
		as.metrics.CodeRedeemed(ls.TenantID, string(codes.TypeTicket), false)
		return as.errorResponse(ls.AuthParams, &apperrors.Error{
			Kind: apperrors.KindNotFound, Code: CodeAccessDenied, Message: "Invalid or expired login ticket", Err: err,
		})
	}
	if err != nil {
		return Fail(transient("[AuthorizationService.redeemLoginTicket] Redeem", err))
	}
	as.metrics.CodeRedeemed(ls.TenantID, string(codes.TypeTicket), true)

	clientID, _, _ := strings.Cut(ticket.CodeVerifier, "|")
	if clientID != ls.AuthParams.ClientID {
		return as.errorResponse(ls.AuthParams, apperrors.Denied("The login ticket was issued to another application.", apperrors.ErrInvalidClient))
	}
	user, err := as.repos.Users.Get(ctx, ls.TenantID, ticket.UserID)
	if err != nil {
		return as.errorResponse(ls.AuthParams, apperrors.Denied("The login ticket is no longer valid.", err))
	}
	if conn, err := as.repos.Connections.Get(ctx, ls.TenantID, ticket.ConnectionID); err == nil {
		ls.AuthConnection = conn.Name
	}
	ls.AuthParams.Username = user.Identifier()
	return as.finishLogin(ctx, ls, user, MethodTicket, req)
}
