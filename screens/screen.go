package screens

import (
	"context"
	"errors"
	"net/url"

	"github.com/jrsteele09/go-auth-engine/auth"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/loginsessions"
)

var ErrUnknownScreen = errors.New("unknown screen")

// CSRFField is the hidden form field carrying the login session's CSRF token.
const CSRFField = "csrf"

// ActionField names the submit button used by screens with more than one action.
const ActionField = "action"

// FlowContext binds one screen request to its login session.
type FlowContext struct {
	Service      *auth.AuthorizationService
	LoginSession *loginsessions.LoginSession
	Request      auth.RequestInfo
	Text         RenderContext
	// Query is the query string of the screen request, e.g. the code of a reset link.
	Query url.Values
	// FormID and NodeID address the node of a hook form.
	FormID string
	NodeID string
}

func (fc *FlowContext) state() string {
	return fc.LoginSession.ID
}

// Screen is one step of the universal login pages.
type Screen interface {
	ID() string
	Render(ctx context.Context, fc *FlowContext) (*View, error)
	Submit(ctx context.Context, fc *FlowContext, form url.Values) auth.Result
}

// Registry dispatches screen requests by screen id. It keeps no per-request state.
type Registry struct {
	screens map[string]Screen
}

func NewRegistry(screens ...Screen) *Registry {
	r := &Registry{screens: make(map[string]Screen, len(screens))}
	for _, s := range screens {
		r.screens[s.ID()] = s
	}
	return r
}

// Default returns a registry holding every screen of the login flow.
func Default() *Registry {
	return NewRegistry(
		Identifier{},
		EnterCode{},
		EnterPassword{},
		ResetPassword{},
		Impersonate{},
		Account{},
		ChangeEmail{},
		FormNode{},
	)
}

// Lookup returns the screen registered under id.
func (r *Registry) Lookup(id string) (Screen, error) {
	s, ok := r.screens[id]
	if !ok {
		return nil, apperrors.NotFound("Page not found.", ErrUnknownScreen)
	}
	return s, nil
}

// Render renders screen id for the login session of fc.
func (r *Registry) Render(ctx context.Context, id string, fc *FlowContext) (*View, error) {
	s, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := usable(fc); err != nil {
		return nil, err
	}
	v, err := s.Render(ctx, fc)
	if err != nil {
		return nil, err
	}
	v.Screen = s.ID()
	v.Locale = fc.Text.Locale
	v.CSRFToken = fc.LoginSession.CSRFToken
	v.Text = fc.Text
	return v, nil
}

// Submit passes form to screen id. Unknown screens and finished login sessions fail without
// touching any state.
func (r *Registry) Submit(ctx context.Context, id string, fc *FlowContext, form url.Values) auth.Result {
	s, err := r.Lookup(id)
	if err != nil {
		return auth.Fail(err)
	}
	if err := usable(fc); err != nil {
		return auth.Fail(err)
	}
	return s.Submit(ctx, fc, form)
}

// RenderResult renders the screen a Continue result points at, carrying its error and notice.
func (r *Registry) RenderResult(ctx context.Context, fc *FlowContext, res auth.Result) (*View, error) {
	v, err := r.Render(ctx, res.Screen, fc)
	if err != nil {
		return nil, err
	}
	if res.Notice != "" {
		v.Notice = res.Notice
	}
	v.SetError(res.Err)
	return v, nil
}

func usable(fc *FlowContext) error {
	if fc.LoginSession == nil || fc.LoginSession.State == loginsessions.StateCompleted {
		return sessionExpired()
	}
	return nil
}

func sessionExpired() *apperrors.Error {
	return apperrors.NotFound("Your session has expired. Please start again.", apperrors.ErrSessionExpired)
}

// requireUsername fails screens that need an identifier before one was entered.
func requireUsername(fc *FlowContext) (string, error) {
	if fc.LoginSession.AuthParams.Username == "" {
		return "", sessionExpired()
	}
	return fc.LoginSession.AuthParams.Username, nil
}
