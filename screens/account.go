package screens

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-auth-engine/auth"
)

// Account is the landing screen of an account continuation. Submitting it resumes the
// original authorization request.
type Account struct{}

func (Account) ID() string { return auth.ScreenAccount }

func (Account) Render(ctx context.Context, fc *FlowContext) (*View, error) {
	user, err := fc.Service.ContinuationUser(ctx, fc.LoginSession, auth.ScreenAccount)
	if err != nil {
		return nil, err
	}
	who := user.Identifier()
	if user.Email != "" && !user.EmailVerified {
		who += " (" + fc.Text.T("account.email_unverified") + ")"
	}
	return &View{
		Title:       fc.Text.T("account.title"),
		Description: fc.Text.Tf("account.description", who),
		Action:      auth.ScreenPath(auth.ScreenAccount, fc.state()),
		Submit:      fc.Text.T("account.continue"),
		Links: []Link{
			{Label: fc.Text.T("account.change_email"), URL: auth.ScreenPath(auth.ScreenChangeEmail, fc.state())},
		},
	}, nil
}

func (Account) Submit(ctx context.Context, fc *FlowContext, _ url.Values) auth.Result {
	if _, err := fc.Service.ContinuationUser(ctx, fc.LoginSession, auth.ScreenAccount); err != nil {
		return auth.Fail(err)
	}
	return auth.Redirect(fc.LoginSession.StateData.ContinuationReturnURL)
}

// ChangeEmail updates the email address of the continuation's user.
type ChangeEmail struct{}

func (ChangeEmail) ID() string { return auth.ScreenChangeEmail }

func (ChangeEmail) Render(ctx context.Context, fc *FlowContext) (*View, error) {
	user, err := fc.Service.ContinuationUser(ctx, fc.LoginSession, auth.ScreenChangeEmail)
	if err != nil {
		return nil, err
	}
	return &View{
		Title:  fc.Text.T("change_email.title"),
		Action: auth.ScreenPath(auth.ScreenChangeEmail, fc.state()),
		Fields: []Field{
			{Name: "email", Label: fc.Text.T("change_email.email"), Type: FieldEmail, Value: user.Email, Required: true},
		},
		Submit: fc.Text.T("change_email.submit"),
		Links: []Link{
			{Label: fc.Text.T("account.title"), URL: auth.ScreenPath(auth.ScreenAccount, fc.state())},
		},
	}, nil
}

func (ChangeEmail) Submit(ctx context.Context, fc *FlowContext, form url.Values) auth.Result {
	return fc.Service.ChangeEmail(ctx, fc.LoginSession, form.Get("email"))
}
