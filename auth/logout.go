package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/audit"
	"github.com/jrsteele09/go-auth-engine/internal/utils"
	"github.com/jrsteele09/go-auth-engine/sessions"
	"github.com/pkg/errors"
)

// LogoutRequest is a front-channel logout.
type LogoutRequest struct {
	TenantID  string
	ClientID  string
	ReturnTo  string
	SessionID string
	IP        string
}

// Logout revokes the session of the cookie and redirects to returnTo when the client allows
// it. The session row is kept until cleanup removes it.
func (as *AuthorizationService) Logout(ctx context.Context, req LogoutRequest) Result {
	target := "/"
	if req.ClientID != "" {
		client, err := as.client(ctx, req.TenantID, req.ClientID)
		if err != nil {
			return Fail(err)
		}
		if req.ReturnTo != "" {
			if !client.AllowsLogoutURL(req.ReturnTo) {
				return Fail(invalidRequest("The returnTo URL is not allowed for the application.", nil))
			}
			target = req.ReturnTo
		}
	}

	if req.SessionID != "" {
		s, err := as.repos.Sessions.Get(ctx, req.TenantID, req.SessionID)
		switch {
		case errors.Is(err, sessions.ErrSessionNotFound):
		case err != nil:
			return Fail(transient("[AuthorizationService.Logout] Get", err))
		case s.RevokedAt == nil:
			s.RevokedAt = utils.Ptr(as.nowTime())
			s.UpdatedAt = *s.RevokedAt
			if err := as.repos.Sessions.Update(ctx, s); err != nil {
				return Fail(transient("[AuthorizationService.Logout] Update", err))
			}
			as.emit(ctx, audit.Event{
				Type:      audit.EventLogout,
				TenantID:  req.TenantID,
				UserID:    s.UserID,
				ClientID:  req.ClientID,
				SessionID: s.ID,
				IP:        req.IP,
				Success:   true,
			})
		}
	}
	return Redirect(target, as.clearSessionCookie())
}
