package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenInactive = errors.New("refresh token is expired or revoked")
)

// RefreshToken is the server-side record behind the opaque token handed to the client.
// The ID is the token value itself.
type RefreshToken struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	ClientID      string     `json:"client_id"`
	UserID        string     `json:"user_id"`
	SessionID     string     `json:"session_id,omitempty"`
	Scope         string     `json:"scope"`
	Audience      string     `json:"audience,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	IdleExpiresAt time.Time  `json:"idle_expires_at"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

// IsActive reports whether the token is neither revoked nor past either expiry.
func (rt *RefreshToken) IsActive(now time.Time) bool {
	if rt.RevokedAt != nil {
		return false
	}
	if !now.Before(rt.ExpiresAt) {
		return false
	}
	return rt.IdleExpiresAt.IsZero() || now.Before(rt.IdleExpiresAt)
}

// Expiry is the earlier of the absolute and idle expiries.
func (rt *RefreshToken) Expiry() time.Time {
	if !rt.IdleExpiresAt.IsZero() && rt.IdleExpiresAt.Before(rt.ExpiresAt) {
		return rt.IdleExpiresAt
	}
	return rt.ExpiresAt
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
	Create(ctx context.Context, rt *RefreshToken) error
	Get(ctx context.Context, tenantID, id string) (*RefreshToken, error)
	Update(ctx context.Context, rt *RefreshToken) error
	Remove(ctx context.Context, tenantID, id string) error
	// ListExpired returns tokens whose absolute or idle expiry is before filter.Before, oldest first.
	ListExpired(ctx context.Context, filter CleanupFilter) ([]*RefreshToken, error)
	// HasActiveForSession reports whether any active refresh token references sessionID.
	HasActiveForSession(ctx context.Context, tenantID, sessionID string, now time.Time) (bool, error)
}
