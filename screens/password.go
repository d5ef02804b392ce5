package screens

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-auth-engine/auth"
)

// ActionForgotPassword is posted by the forgot password button of the enter-password screen.
const ActionForgotPassword = "forgot-password"

// EnterPassword asks for the password of a password realm identifier and offers a reset.
type EnterPassword struct{}

func (EnterPassword) ID() string { return auth.ScreenEnterPassword }

func (EnterPassword) Render(_ context.Context, fc *FlowContext) (*View, error) {
	username, err := requireUsername(fc)
	if err != nil {
		return nil, err
	}
	return &View{
		Title:       fc.Text.T("password.title"),
		Description: fc.Text.Tf("password.description", username),
		Action:      auth.ScreenPath(auth.ScreenEnterPassword, fc.state()),
		Fields: []Field{
			{Name: "password", Label: fc.Text.T("password.password"), Type: FieldPassword, Required: true},
		},
		Submit: fc.Text.T("password.submit"),
		Secondary: []Button{
			{Name: ActionField, Value: ActionForgotPassword, Label: fc.Text.T("password.forgot")},
		},
		Links: []Link{
			{Label: fc.Text.T("password.back_to_username"), URL: auth.ScreenPath(auth.ScreenIdentifier, fc.state())},
		},
	}, nil
}

func (EnterPassword) Submit(ctx context.Context, fc *FlowContext, form url.Values) auth.Result {
	if form.Get(ActionField) == ActionForgotPassword {
		return fc.Service.StartPasswordReset(ctx, fc.LoginSession, fc.Request)
	}
	return fc.Service.VerifyPassword(ctx, fc.LoginSession, form.Get("password"), fc.Request)
}

// ResetPassword sets a new password with the code from the reset email. The reset link
// pre-fills the code.
type ResetPassword struct{}

func (ResetPassword) ID() string { return auth.ScreenResetPassword }

func (ResetPassword) Render(_ context.Context, fc *FlowContext) (*View, error) {
	if _, err := requireUsername(fc); err != nil {
		return nil, err
	}
	return &View{
		Title:       fc.Text.T("reset.title"),
		Description: fc.Text.T("reset.description"),
		Action:      auth.ScreenPath(auth.ScreenResetPassword, fc.state()),
		Fields: []Field{
			{Name: "code", Label: fc.Text.T("reset.code"), Type: FieldCode, Value: fc.Query.Get("code"), Required: true},
			{Name: "password", Label: fc.Text.T("reset.password"), Type: FieldPassword, Required: true},
		},
		Submit: fc.Text.T("reset.submit"),
	}, nil
}

func (ResetPassword) Submit(ctx context.Context, fc *FlowContext, form url.Values) auth.Result {
	return fc.Service.ResetPassword(ctx, fc.LoginSession, form.Get("code"), form.Get("password"), fc.Request)
}
