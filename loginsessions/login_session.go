package loginsessions

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jrsteele09/go-auth-engine/oauthmodel"
)

var ErrLoginSessionNotFound = errors.New("login session not found")

// State is the lifecycle state of a login session.
type State string

const (
	StatePending              State = "pending"
	StateAwaitingHook         State = "awaiting_hook"
	StateAwaitingContinuation State = "awaiting_continuation"
	StateCompleted            State = "completed"
)

// StateData is the opaque per-state payload of a login session.
type StateData struct {
	ContinuationScope     []string `json:"continuationScope,omitempty"`
	ContinuationReturnURL string   `json:"continuationReturnUrl,omitempty"`

	// Hook wait: the form the user must complete and the user it was raised for.
	HookFormID string `json:"hookFormId,omitempty"`
	HookNodeID string `json:"hookNodeId,omitempty"`
	HookUserID string `json:"hookUserId,omitempty"`
	// HookCompleted is set once the hook wait has been cleared.
	HookCompleted bool `json:"hookCompleted,omitempty"`

	// UserID is the verified user while the session is between verification and completion.
	UserID string `json:"userId,omitempty"`
	// ContinuationVisited is set once a continuation has been started so that resuming the
	// flow does not divert the user again.
	ContinuationVisited bool `json:"continuationVisited,omitempty"`

	// OrganizationID is the organization the login was enforced against.
	OrganizationID string `json:"organizationId,omitempty"`
	// ImpersonatorID is the acting user when the session was created by impersonation.
	ImpersonatorID string `json:"impersonatorId,omitempty"`
}

// LoginSession tracks one in-progress authorization attempt. Its ID is the state value
// every screen URL carries.
type LoginSession struct {
	ID         string                             `json:"id"`
	TenantID   string                             `json:"tenant_id"`
	AuthParams oauthmodel.AuthorizationParameters `json:"auth_params"`
	// SessionID is the long-lived session linked once authentication completes.
	SessionID string    `json:"session_id,omitempty"`
	State     State     `json:"state"`
	StateData StateData `json:"state_data"`
	CSRFToken string    `json:"csrf_token"`

	AuthConnection string `json:"auth_connection,omitempty"`
	AuthStrategy   string `json:"auth_strategy,omitempty"`
	IP             string `json:"ip,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (ls *LoginSession) Expired(now time.Time) bool {
	return !now.Before(ls.ExpiresAt)
}

// ContinuationAllows reports whether the session is in a continuation whose scope covers target.
func (ls *LoginSession) ContinuationAllows(target string) bool {
	return ls.State == StateAwaitingContinuation && slices.Contains(ls.StateData.ContinuationScope, target)
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
	Create(ctx context.Context, ls *LoginSession) error
	// Get returns the login session or ErrLoginSessionNotFound when it is missing or expired.
	Get(ctx context.Context, tenantID, id string) (*LoginSession, error)
	Update(ctx context.Context, ls *LoginSession) error
	Remove(ctx context.Context, tenantID, id string) error
	// ListExpired returns login sessions that expired before filter.Before, oldest first.
	// A UserID filter matches the user recorded on the session.
	ListExpired(ctx context.Context, filter CleanupFilter) ([]*LoginSession, error)
}

var ErrNotInContinuation = errors.New("login session is not in a continuation")
