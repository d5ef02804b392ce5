package screens

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-auth-engine/auth"
)

// Impersonate lets a logged in administrator complete the login as another user.
type Impersonate struct{}

func (Impersonate) ID() string { return auth.ScreenImpersonate }

func (Impersonate) Render(ctx context.Context, fc *FlowContext) (*View, error) {
	actor, err := fc.Service.Impersonator(ctx, fc.LoginSession, fc.Request)
	if err != nil {
		return nil, err
	}
	return &View{
		Title:       fc.Text.T("impersonate.title"),
		Description: fc.Text.Tf("impersonate.description", actor.Identifier()),
		Action:      auth.ScreenPath(auth.ScreenImpersonate, fc.state()),
		Fields: []Field{
			{Name: "user", Label: fc.Text.T("impersonate.user"), Type: FieldText, Required: true},
		},
		Submit: fc.Text.T("impersonate.submit"),
	}, nil
}

func (Impersonate) Submit(ctx context.Context, fc *FlowContext, form url.Values) auth.Result {
	return fc.Service.Impersonate(ctx, fc.LoginSession, form.Get("user"), fc.Request)
}
