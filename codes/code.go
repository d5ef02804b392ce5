package codes

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCodeNotFound is returned for missing, expired and already redeemed codes alike.
	ErrCodeNotFound = errors.New("code not found")
	// ErrCodeExists is returned by Create when (tenant, code id, type) is taken.
	ErrCodeExists = errors.New("code already exists")
	// ErrCodeCollision is returned when no free code id was found within the retry budget.
	ErrCodeCollision = errors.New("could not generate a unique code")
)

type CodeType string

const (
	TypeOTP               CodeType = "otp"
	TypeOAuth2State       CodeType = "oauth2_state"
	TypeTicket            CodeType = "ticket"
	TypeAuthorizationCode CodeType = "authorization_code"
	TypePasswordReset     CodeType = "password_reset"
)

// Default lifetimes per code type.
const (
	OTPLifetime               = 30 * time.Minute
	AuthorizationCodeLifetime = 5 * time.Minute
	TicketLifetime            = 5 * time.Minute
	PasswordResetLifetime     = time.Hour
	OAuth2StateLifetime       = 10 * time.Minute
)

// Code is a short-lived single-use artifact owned by a login session.
type Code struct {
	TenantID string   `json:"tenant_id"`
	CodeID   string   `json:"code_id"`
	CodeType CodeType `json:"code_type"`
	// LoginID is the owning login session.
	LoginID      string `json:"login_id"`
	ConnectionID string `json:"connection_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`

	// CodeVerifier holds type specific binding material: the normalized identifier for otp,
	// the upstream PKCE verifier for oauth2_state, "client_id|verifier" for tickets.
	CodeVerifier string `json:"code_verifier,omitempty"`
	// CodeChallenge and method are copied from the authorization request for authorization codes.
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	RedirectURI         string `json:"redirect_uri,omitempty"`
	// Nonce is used by oauth2_state codes for the upstream id_token.
	Nonce string `json:"nonce,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *Code) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// CleanupFilter selects expired codes. Empty TenantID and UserID match every code.
type CleanupFilter struct {
	TenantID string
	UserID   string
	Before   time.Time
	Limit    int
}

type Repo interface {
	// Create stores a code and fails with ErrCodeExists if the id is taken within (tenant, type).
	Create(ctx context.Context, code *Code) error
	// Get returns an unexpired code or ErrCodeNotFound.
	Get(ctx context.Context, tenantID, codeID string, codeType CodeType) (*Code, error)
	// Remove deletes the code. It returns ErrCodeNotFound when the code was already gone,
	// which makes it the single point deciding which of two concurrent redemptions wins.
	Remove(ctx context.Context, tenantID, codeID string, codeType CodeType) error
	// RemoveExpired deletes up to filter.Limit matching codes that expired before filter.Before
	// and reports how many were removed.
	RemoveExpired(ctx context.Context, filter CleanupFilter) (int, error)
}
