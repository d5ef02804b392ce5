package sessions

import (
	"context"
	"errors"
	"slices"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// Device records where a session was started from and last used.
type Device struct {
	InitialIP        string `json:"initial_ip,omitempty"`
	InitialUserAgent string `json:"initial_user_agent,omitempty"`
	LastIP           string `json:"last_ip,omitempty"`
	LastUserAgent    string `json:"last_user_agent,omitempty"`
}

// Session is the long-lived authenticated session created when a login session completes.
type Session struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	UserID          string     `json:"user_id"`
	LoginSessionID  string     `json:"login_session_id"`
	Clients         []string   `json:"clients"`
	Device          Device     `json:"device"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	AuthenticatedAt time.Time  `json:"authenticated_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	IdleExpiresAt   time.Time  `json:"idle_expires_at"`
	UsedAt          *time.Time `json:"used_at,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
}

// IsActive reports whether the session is neither revoked nor past either expiry.
func (s *Session) IsActive(now time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	if !now.Before(s.ExpiresAt) {
		return false
	}
	return s.IdleExpiresAt.IsZero() || now.Before(s.IdleExpiresAt)
}

// HasClient reports whether clientID has been issued credentials under this session.
func (s *Session) HasClient(clientID string) bool {
	return slices.Contains(s.Clients, clientID)
}

// AddClient appends clientID if it is not already linked.
func (s *Session) AddClient(clientID string) {
	if clientID != "" && !s.HasClient(clientID) {
		s.Clients = append(s.Clients, clientID)
	}
}

// Touch records use of the session and slides its idle expiry.
func (s *Session) Touch(now time.Time, idle time.Duration, ip, userAgent string) {
	s.UsedAt = &now
	s.UpdatedAt = now
	if idle > 0 {
		s.IdleExpiresAt = now.Add(idle)
	}
	if ip != "" {
		s.Device.LastIP = ip
	}
	if userAgent != "" {
		s.Device.LastUserAgent = userAgent
	}
}

// Expiry is the earlier of the absolute and idle expiries.
func (s *Session) Expiry() time.Time {
	if !s.IdleExpiresAt.IsZero() && s.IdleExpiresAt.Before(s.ExpiresAt) {
		return s.IdleExpiresAt
	}
	return s.ExpiresAt
}

// CleanupFilter scopes a cleanup query. Empty fields match everything.
type CleanupFilter struct {
	TenantID string
	UserID   string
	Before   time.Time
	Limit    int
	// Offset skips that many of the oldest matches, the rows an earlier page kept.
	Offset int
}

type Repo interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, tenantID, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Remove(ctx context.Context, tenantID, id string) error
	// ListExpired returns sessions whose absolute or idle expiry is before filter.Before, oldest first.
	ListExpired(ctx context.Context, filter CleanupFilter) ([]*Session, error)
	// HasActiveForLoginSession reports whether an active session was created from loginSessionID.
	HasActiveForLoginSession(ctx context.Context, tenantID, loginSessionID string, now time.Time) (bool, error)
	// ListForUser returns every session belonging to userID.
	ListForUser(ctx context.Context, tenantID, userID string) ([]*Session, error)
}
