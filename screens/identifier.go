package screens

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/connections"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/pkg/errors"
)

// ConnectionField is posted by the "continue with" buttons of upstream connections.
const ConnectionField = "connection"

// Identifier asks for an email, phone number or username and routes to the code or password
// screen. Upstream connections of the client are offered as buttons.
type Identifier struct{}

func (Identifier) ID() string { return auth.ScreenIdentifier }

func (Identifier) Render(ctx context.Context, fc *FlowContext) (*View, error) {
	params := fc.LoginSession.AuthParams
	value := params.Username
	if value == "" {
		value = params.LoginHint
	}
	v := &View{
		Title:       fc.Text.T("login.title"),
		Description: fc.Text.T("login.description"),
		Action:      auth.ScreenPath(auth.ScreenIdentifier, fc.state()),
		Fields: []Field{
			{Name: "username", Label: fc.Text.T("login.username"), Type: FieldText, Value: value, Required: true},
		},
		Submit: fc.Text.T("login.submit"),
	}

	upstream, err := upstreamConnections(ctx, fc)
	if err != nil {
		return nil, err
	}
	for _, conn := range upstream {
		v.Secondary = append(v.Secondary, Button{
			Name:  ConnectionField,
			Value: conn.Name,
			Label: fc.Text.Tf("upstream.continue_with", conn.Label()),
		})
	}
	return v, nil
}

func (Identifier) Submit(ctx context.Context, fc *FlowContext, form url.Values) auth.Result {
	if name := form.Get(ConnectionField); name != "" {
		upstream, err := upstreamConnections(ctx, fc)
		if err != nil {
			return auth.Fail(err)
		}
		for _, conn := range upstream {
			if conn.Name == name {
				return fc.Service.StartUpstreamLogin(ctx, fc.LoginSession, conn)
			}
		}
		return auth.ContinueWithError(auth.ScreenIdentifier, apperrors.Validation("", "The connection is not available."))
	}
	return fc.Service.SubmitIdentifier(ctx, fc.LoginSession, form.Get("username"), fc.Request)
}

// upstreamConnections returns the client's enabled oidc connections in client order.
func upstreamConnections(ctx context.Context, fc *FlowContext) ([]*connections.Connection, error) {
	repos := fc.Service.Repos()
	client, err := repos.Clients.Get(ctx, fc.LoginSession.TenantID, fc.LoginSession.AuthParams.ClientID)
	if err != nil {
		return nil, apperrors.Transient("Something went wrong, please try again later.", errors.Wrap(err, "[screens.upstreamConnections] client"))
	}
	var upstream []*connections.Connection
	for _, name := range client.Connections {
		conn, err := repos.Connections.GetByName(ctx, fc.LoginSession.TenantID, name)
		if errors.Is(err, connections.ErrConnectionNotFound) {
			continue
		}
		if err != nil {
			return nil, apperrors.Transient("Something went wrong, please try again later.", errors.Wrap(err, "[screens.upstreamConnections] connection"))
		}
		if conn.Strategy == connections.StrategyOIDC {
			upstream = append(upstream, conn)
		}
	}
	return upstream, nil
}
