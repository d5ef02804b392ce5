package auth_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/jrsteele09/go-auth-engine/auth"
	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/connections"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/notify"
	"github.com/stretchr/testify/require"
)

func TestClassifyIdentifier(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		country    string
		wantType   auth.IdentifierType
		normalized string
		wantErr    bool
	}{
		{name: "email is lower-cased", raw: "  John.Doe@Example.COM ", country: "US", wantType: auth.IdentifierEmail, normalized: "john.doe@example.com"},
		{name: "national phone uses default country", raw: "(650) 253-0000", country: "US", wantType: auth.IdentifierPhone, normalized: "+16502530000"},
		{name: "international phone", raw: "+44 20 7946 0958", country: "US", wantType: auth.IdentifierPhone, normalized: "+442079460958"},
		{name: "username", raw: "JohnD", country: "US", wantType: auth.IdentifierUsername, normalized: "johnd"},
		{name: "empty", raw: "   ", country: "US", wantErr: true},
		{name: "malformed email", raw: "john@", country: "US", wantErr: true},
		{name: "display name email", raw: "John <john@example.com>", country: "US", wantErr: true},
		{name: "invalid phone", raw: "+1 000 000", country: "US", wantErr: true},
		{name: "username with space", raw: "john doe", country: "US", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := auth.ClassifyIdentifier(tt.raw, tt.country)
			if tt.wantErr {
				require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantType, id.Type)
			require.Equal(t, tt.normalized, id.Normalized)
		})
	}
}

func (f *testFixture) client(t *testing.T, id string) *clients.Client {
	t.Helper()
	c, err := f.clients.Get(context.Background(), testTenantID, id)
	require.NoError(t, err)
	return c
}

func TestResolveStrategy(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	spa := f.client(t, testClientID)
	existing := f.createPasswordUser(t, testUserEmail, testUserPassword)

	email, err := auth.ClassifyIdentifier(testUserEmail, "US")
	require.NoError(t, err)
	res, err := f.service.ResolveStrategy(ctx, spa, email, "")
	require.NoError(t, err)
	require.Equal(t, auth.StrategyPassword, res.Strategy)
	require.Equal(t, passwordConnection, res.Connection.Name)
	require.Equal(t, existing.ID, res.User.ID)

	res, err = f.service.ResolveStrategy(ctx, spa, email, auth.LoginSelectionCode)
	require.NoError(t, err)
	require.Equal(t, auth.StrategyCode, res.Strategy)
	require.Equal(t, "email", res.Connection.Name)

	unknown, err := auth.ClassifyIdentifier("someone@example.com", "US")
	require.NoError(t, err)
	res, err = f.service.ResolveStrategy(ctx, spa, unknown, "")
	require.NoError(t, err)
	require.Equal(t, auth.StrategyCode, res.Strategy)
	require.Equal(t, connections.ProviderEmail, res.Provider)
	require.Nil(t, res.User)

	phone, err := auth.ClassifyIdentifier("(650) 253-0000", "US")
	require.NoError(t, err)
	res, err = f.service.ResolveStrategy(ctx, spa, phone, "")
	require.NoError(t, err)
	require.Equal(t, "sms", res.Connection.Name)

	backend := f.client(t, testBackendClientID)
	_, err = f.service.ResolveStrategy(ctx, backend, phone, "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	username, err := auth.ClassifyIdentifier("johnd", "US")
	require.NoError(t, err)
	_, err = f.service.ResolveStrategy(ctx, spa, username, "")
	require.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestUsernameLoginOnConnectionThatRequiresUsername(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	conn, err := f.connections.GetByName(ctx, testTenantID, passwordConnection)
	require.NoError(t, err)
	conn.Options.RequiresUsername = true
	require.NoError(t, f.connections.Upsert(ctx, conn))

	username, err := auth.ClassifyIdentifier("JohnD", "US")
	require.NoError(t, err)
	res, err := f.service.ResolveStrategy(ctx, f.client(t, testClientID), username, "")
	require.NoError(t, err)
	require.Equal(t, auth.StrategyPassword, res.Strategy)
}

func TestSMSLoginSendsCodeToE164Number(t *testing.T) {
	f := setupTestFixture(t)
	ls, res := f.codeLogin(t, codeParams(), "(650) 253-0000")
	require.NotEmpty(t, redirectQuery(t, res).Get("code"))

	sent, ok := f.notifier.Last()
	require.True(t, ok)
	require.Equal(t, notify.ChannelSMS, sent.To.Channel)
	require.Equal(t, "+16502530000", sent.To.Address)
	require.Equal(t, "+16502530000", f.loginSession(t, ls.ID).AuthParams.Username)
}

func TestMagicLinkCarriesStateAndCode(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	conn, err := f.connections.GetByName(ctx, testTenantID, "email")
	require.NoError(t, err)
	conn.Options.AuthenticationMethod = connections.MethodMagicLink
	require.NoError(t, f.connections.Upsert(ctx, conn))

	ls := f.authorize(t, codeParams())
	res := f.service.SubmitIdentifier(ctx, ls, "someone@example.com", auth.RequestInfo{})
	require.Equal(t, auth.ScreenEnterCode, res.Screen)

	sent, ok := f.notifier.Last()
	require.True(t, ok)
	require.Equal(t, notify.KindLink, sent.Kind)
	link, err := url.Parse(sent.Link)
	require.NoError(t, err)
	require.Equal(t, "/passwordless/verify_redirect", link.Path)
	require.Equal(t, ls.ID, link.Query().Get("state"))
	require.Equal(t, sent.Code, link.Query().Get("verification_code"))

	res = f.service.VerifyCode(ctx, ls, link.Query().Get("verification_code"), auth.RequestInfo{})
	require.NotEmpty(t, redirectQuery(t, res).Get("code"))
}
