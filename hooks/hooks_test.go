package hooks_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-auth-engine/hooks"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/stretchr/testify/require"
)

func setupGate(t *testing.T) *hooks.RulesGate {
	t.Helper()
	forms := hooks.NewInMemoryFormRepo()
	require.NoError(t, forms.Upsert(context.Background(), &hooks.Form{
		ID:       "terms",
		TenantID: "t1",
		Nodes: []hooks.Node{
			{ID: "accept", Fields: []hooks.Field{{Name: "accepted_terms", Type: "checkbox", Required: true}}},
			{ID: "profile", Fields: []hooks.Field{{Name: "company", Type: "text"}}},
		},
	}))
	gate := hooks.NewRulesGate(forms)
	gate.SetRules("t1", hooks.Rules{
		DeniedSignupDomains: []string{"spam.example"},
		SignupDenyReason:    "No spam please",
		BlockedClients:      []string{"legacy-app"},
		Forms:               []hooks.FormRule{{ClientID: "client-1", FormID: "terms"}},
	})
	return gate
}

func TestValidateSignupEmail(t *testing.T) {
	ctx := context.Background()
	gate := setupGate(t)

	d, err := gate.ValidateSignupEmail(ctx, hooks.SignupRequest{TenantID: "t1", Email: "bob@SPAM.example"})
	require.NoError(t, err)
	require.Equal(t, hooks.Deny("No spam please"), d)

	d, err = gate.ValidateSignupEmail(ctx, hooks.SignupRequest{TenantID: "t1", Email: "bob@example.com"})
	require.NoError(t, err)
	require.Equal(t, hooks.ActionAllow, d.Action)

	d, err = gate.ValidateSignupEmail(ctx, hooks.SignupRequest{TenantID: "t2", Email: "bob@spam.example"})
	require.NoError(t, err)
	require.Equal(t, hooks.ActionAllow, d.Action)
}

func TestPostLoginRequiresFormUntilCompleted(t *testing.T) {
	ctx := context.Background()
	gate := setupGate(t)
	user := &users.User{ID: "email|1", TenantID: "t1"}

	d, err := gate.PostLogin(ctx, hooks.LoginEvent{TenantID: "t1", ClientID: "client-1", User: user})
	require.NoError(t, err)
	require.Equal(t, hooks.RequireForm("terms", "accept"), d)

	hooks.MarkFormCompleted(user, "terms", map[string]string{"accepted_terms": "on"})
	d, err = gate.PostLogin(ctx, hooks.LoginEvent{TenantID: "t1", ClientID: "client-1", User: user})
	require.NoError(t, err)
	require.Equal(t, hooks.ActionAllow, d.Action)
	require.Equal(t, "on", user.UserMetadata["accepted_terms"])

	d, err = gate.PostLogin(ctx, hooks.LoginEvent{TenantID: "t1", ClientID: "legacy-app", User: user})
	require.NoError(t, err)
	require.Equal(t, hooks.ActionDeny, d.Action)
}

func TestFormNavigation(t *testing.T) {
	form := &hooks.Form{ID: "f", Nodes: []hooks.Node{
		{ID: "a", Fields: []hooks.Field{{Name: "x", Required: true}}},
		{ID: "b"},
	}}
	require.Equal(t, "a", form.FirstNode())
	require.Equal(t, "b", form.NextNode("a"))
	require.Equal(t, "", form.NextNode("b"))

	node, err := form.Node("a")
	require.NoError(t, err)
	missing, ok := node.Validate(map[string]string{"x": " "})
	require.False(t, ok)
	require.Equal(t, "x", missing)

	_, err = form.Node("zzz")
	require.ErrorIs(t, err, hooks.ErrNodeNotFound)
}
