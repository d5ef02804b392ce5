package screens

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-auth-engine/auth"
)

// EnterCode asks for the one-time code sent to the identifier.
type EnterCode struct{}

func (EnterCode) ID() string { return auth.ScreenEnterCode }

func (EnterCode) Render(_ context.Context, fc *FlowContext) (*View, error) {
	username, err := requireUsername(fc)
	if err != nil {
		return nil, err
	}
	return &View{
		Title:       fc.Text.T("code.title"),
		Description: fc.Text.Tf("code.description", username),
		Action:      auth.ScreenPath(auth.ScreenEnterCode, fc.state()),
		Fields: []Field{
			{Name: "code", Label: fc.Text.T("code.code"), Type: FieldCode, Required: true},
		},
		Submit: fc.Text.T("code.submit"),
		Links: []Link{
			{Label: fc.Text.T("password.back_to_username"), URL: auth.ScreenPath(auth.ScreenIdentifier, fc.state())},
		},
	}, nil
}

func (EnterCode) Submit(ctx context.Context, fc *FlowContext, form url.Values) auth.Result {
	if _, err := requireUsername(fc); err != nil {
		return auth.Fail(err)
	}
	return fc.Service.VerifyCode(ctx, fc.LoginSession, form.Get("code"), fc.Request)
}
