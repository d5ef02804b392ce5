package hooks

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/users"
)

// Action is the outcome of a hook.
type Action string

const (
	ActionAllow       Action = "allow"
	ActionDeny        Action = "deny"
	ActionRequireForm Action = "require_form"
)

// Decision is what a hook returns. Reason is shown to the user verbatim on deny.
type Decision struct {
	Action Action
	Reason string
	FormID string
	NodeID string
}

func Allow() Decision {
	return Decision{Action: ActionAllow}
}

func Deny(reason string) Decision {
	return Decision{Action: ActionDeny, Reason: reason}
}

func RequireForm(formID, nodeID string) Decision {
	return Decision{Action: ActionRequireForm, FormID: formID, NodeID: nodeID}
}

type SignupRequest struct {
	TenantID     string
	ClientID     string
	ConnectionID string
	Email        string
	IP           string
}

type LoginEvent struct {
	TenantID       string
	ClientID       string
	ConnectionID   string
	LoginSessionID string
	Organization   string
	IP             string
	User           *users.User
}

// Gate is the extensibility point around signup and login.
type Gate interface {
	// ValidateSignupEmail runs before a user is created for an unknown identifier.
	ValidateSignupEmail(ctx context.Context, req SignupRequest) (Decision, error)
	// PostLogin runs once per completed verification, before the response is assembled.
	PostLogin(ctx context.Context, event LoginEvent) (Decision, error)
}

// AllowAll is a Gate that never objects.
type AllowAll struct{}

func (AllowAll) ValidateSignupEmail(context.Context, SignupRequest) (Decision, error) {
	return Allow(), nil
}

func (AllowAll) PostLogin(context.Context, LoginEvent) (Decision, error) {
	return Allow(), nil
}
