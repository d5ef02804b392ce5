package oauthmodel_test

import (
	"net/url"
	"testing"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/oauthmodel"
	"github.com/stretchr/testify/require"
)

const (
	testRedirectURI   = "http://localhost:3000/callback"
	testCodeChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	testCodeVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

func testClient(clientType clients.ClientType) *clients.Client {
	return &clients.Client{
		ID:           "client-1",
		TenantID:     "tenant-1",
		Type:         clientType,
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"openid", "profile", "read:orders"},
	}
}

func validParameters() *oauthmodel.AuthorizationParameters {
	return &oauthmodel.AuthorizationParameters{
		TenantID:            "tenant-1",
		ClientID:            "client-1",
		ResponseType:        oauthmodel.CodeResponseType,
		RedirectURI:         testRedirectURI,
		Scope:               "openid profile",
		CodeChallenge:       testCodeChallenge,
		CodeChallengeMethod: oauthmodel.CodeMethodTypeS256,
	}
}

func TestValidateParametersWithClient(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *oauthmodel.AuthorizationParameters)
		client *clients.Client
		err    error
	}{
		{name: "valid", modify: func(p *oauthmodel.AuthorizationParameters) {}, client: testClient(clients.ClientTypePublic)},
		{name: "web_message accepted", modify: func(p *oauthmodel.AuthorizationParameters) { p.ResponseMode = oauthmodel.WebMessageResponseMode }, client: testClient(clients.ClientTypePublic)},
		{name: "id_token token accepted", modify: func(p *oauthmodel.AuthorizationParameters) { p.ResponseType = oauthmodel.IDTokenTokenResponseType }, client: testClient(clients.ClientTypePublic)},
		{name: "unknown redirect", modify: func(p *oauthmodel.AuthorizationParameters) { p.RedirectURI = "https://evil.example.com" }, client: testClient(clients.ClientTypePublic), err: oauthmodel.ErrInvalidRedirectUri},
		{name: "unknown response type", modify: func(p *oauthmodel.AuthorizationParameters) { p.ResponseType = "code token" }, client: testClient(clients.ClientTypePublic), err: oauthmodel.ErrInvalidResponseType},
		{name: "unknown response mode", modify: func(p *oauthmodel.AuthorizationParameters) { p.ResponseMode = "jwt" }, client: testClient(clients.ClientTypePublic), err: oauthmodel.ErrInvalidResponseMode},
		{name: "public client without PKCE", modify: func(p *oauthmodel.AuthorizationParameters) { p.CodeChallenge = "" }, client: testClient(clients.ClientTypePublic), err: oauthmodel.ErrPKCERequired},
		{name: "confidential client without PKCE", modify: func(p *oauthmodel.AuthorizationParameters) { p.CodeChallenge = "" }, client: testClient(clients.ClientTypeConfidential)},
		{name: "bad challenge method", modify: func(p *oauthmodel.AuthorizationParameters) { p.CodeChallengeMethod = "S512" }, client: testClient(clients.ClientTypePublic), err: oauthmodel.ErrInvalidCodeChallengeMethod},
		{name: "scope not allowed", modify: func(p *oauthmodel.AuthorizationParameters) { p.Scope = "openid admin" }, client: testClient(clients.ClientTypePublic), err: oauthmodel.ErrInvalidScope},
		{name: "tenant mismatch", modify: func(p *oauthmodel.AuthorizationParameters) { p.TenantID = "tenant-2" }, client: testClient(clients.ClientTypePublic), err: oauthmodel.ErrClientTenantsMismatch},
		{name: "bad prompt", modify: func(p *oauthmodel.AuthorizationParameters) { p.Prompt = "maybe" }, client: testClient(clients.ClientTypePublic), err: oauthmodel.ErrInvalidPrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParameters()
			tt.modify(p)
			err := p.ValidateParametersWithClient(tt.client)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEffectiveResponseMode(t *testing.T) {
	p := validParameters()
	require.Equal(t, oauthmodel.QueryResponseMode, p.EffectiveResponseMode())

	p.ResponseType = oauthmodel.IDTokenResponseType
	require.Equal(t, oauthmodel.FragmentResponseMode, p.EffectiveResponseMode())

	p.ResponseMode = oauthmodel.WebMessageResponseMode
	require.Equal(t, oauthmodel.WebMessageResponseMode, p.EffectiveResponseMode())
}

func TestParseAuthorizationParameters(t *testing.T) {
	values := url.Values{
		"client_id":       {"client-1"},
		"response_type":   {"id_token token"},
		"ui_locales":      {"fr-CA en"},
		"prompt":          {"none"},
		"organization":    {"org_1"},
		"login_selection": {"code"},
	}
	p := oauthmodel.ParseAuthorizationParameters(values)
	require.Equal(t, "client-1", p.ClientID)
	require.True(t, p.ReturnsIDToken())
	require.True(t, p.ReturnsAccessToken())
	require.True(t, p.IsSilent())
	require.Equal(t, "fr-CA", p.Locale())
	require.Equal(t, "org_1", p.Organization)
	require.Equal(t, "code", p.LoginSelection)
}

func TestVerifyCodeChallenge(t *testing.T) {
	require.True(t, oauthmodel.VerifyCodeChallenge(testCodeChallenge, oauthmodel.CodeMethodTypeS256, testCodeVerifier))
	require.False(t, oauthmodel.VerifyCodeChallenge(testCodeChallenge, oauthmodel.CodeMethodTypeS256, "wrong"))
	require.True(t, oauthmodel.VerifyCodeChallenge("plain-value", oauthmodel.CodeMethodTypeNone, "plain-value"))
	require.True(t, oauthmodel.VerifyCodeChallenge("", "", ""))
	require.False(t, oauthmodel.VerifyCodeChallenge("", "", "unexpected"))
	require.Equal(t, testCodeChallenge, oauthmodel.S256Challenge(testCodeVerifier))
}
