package oauthmodel

import (
	"net/url"
	"slices"
	"strings"

	"github.com/jrsteele09/go-auth-engine/clients"
)

// AuthorizationParameters holds the parameters of an authorization request.
// They are stored on the login session and travel with it through every screen.
type AuthorizationParameters struct {
	TenantID string `json:"tenant_id"`

	// ClientID identifies the application requesting authorization.
	ClientID string `json:"client_id"`

	// ResponseType: "code", "token", "id_token" or "id_token token".
	ResponseType ResponseType `json:"response_type"`

	// RedirectURI must exactly match one of the client's registered URIs.
	RedirectURI string `json:"redirect_uri"`

	// ResponseMode controls how the result is returned. Empty means the default for ResponseType.
	ResponseMode ResponseModeType `json:"response_mode,omitempty"`

	// Scope is the space separated list of requested scopes, e.g. "openid profile read:orders".
	Scope string `json:"scope,omitempty"`

	// Audience is the identifier of the resource server the access token is for.
	Audience string `json:"audience,omitempty"`

	// State is echoed back to the client unchanged.
	State string `json:"state,omitempty"`

	// Nonce is copied into the id_token.
	Nonce string `json:"nonce,omitempty"`

	CodeChallenge       string         `json:"code_challenge,omitempty"`
	CodeChallengeMethod CodeMethodType `json:"code_challenge_method,omitempty"`

	// Prompt "none" requests silent authentication.
	Prompt string `json:"prompt,omitempty"`

	// LoginHint pre-fills the identifier screen. It is never trusted.
	LoginHint string `json:"login_hint,omitempty"`

	// Organization restricts the login to members of the organization (id or name).
	Organization string `json:"organization,omitempty"`

	// UILocales is a space separated list of preferred locales, e.g. "fr-CA fr en".
	UILocales string `json:"ui_locales,omitempty"`

	// Connection skips strategy resolution and uses the named connection.
	Connection string `json:"connection,omitempty"`

	// LoginSelection "code" forces the one-time-code strategy even where a password is possible.
	LoginSelection string `json:"login_selection,omitempty"`

	// ScreenHint "account" diverts to the account screens once the user is verified.
	ScreenHint string `json:"screen_hint,omitempty"`

	// LoginTicket redeems a ticket issued by cross-origin authentication.
	LoginTicket string `json:"login_ticket,omitempty"`

	// Username is set by the identifier screen once the identifier has been normalized.
	Username string `json:"username,omitempty"`
}

// ParseAuthorizationParameters reads authorization parameters from a query string or form.
func ParseAuthorizationParameters(values url.Values) *AuthorizationParameters {
	return &AuthorizationParameters{
		ClientID:            values.Get("client_id"),
		ResponseType:        ResponseType(values.Get("response_type")),
		RedirectURI:         values.Get("redirect_uri"),
		ResponseMode:        ResponseModeType(values.Get("response_mode")),
		Scope:               values.Get("scope"),
		Audience:            values.Get("audience"),
		State:               values.Get("state"),
		Nonce:               values.Get("nonce"),
		CodeChallenge:       values.Get("code_challenge"),
		CodeChallengeMethod: CodeMethodType(values.Get("code_challenge_method")),
		Prompt:              values.Get("prompt"),
		LoginHint:           values.Get("login_hint"),
		Organization:        values.Get("organization"),
		UILocales:           values.Get("ui_locales"),
		Connection:          values.Get("connection"),
		LoginSelection:      values.Get("login_selection"),
		ScreenHint:          values.Get("screen_hint"),
		LoginTicket:         values.Get("login_ticket"),
	}
}

// EffectiveResponseMode returns the response mode to use: the requested one, otherwise
// query for the code flow and fragment for anything that returns tokens.
func (p *AuthorizationParameters) EffectiveResponseMode() ResponseModeType {
	if p.ResponseMode != "" {
		return p.ResponseMode
	}
	if p.ResponseType == CodeResponseType || p.ResponseType == "" {
		return QueryResponseMode
	}
	return FragmentResponseMode
}

// Scopes returns the requested scopes as a slice.
func (p *AuthorizationParameters) Scopes() []string {
	return SplitScope(p.Scope)
}

// ReturnsAccessToken reports whether the front channel carries an access token.
func (p *AuthorizationParameters) ReturnsAccessToken() bool {
	return p.ResponseType == TokenResponseType || p.ResponseType == IDTokenTokenResponseType
}

// ReturnsIDToken reports whether the front channel carries an id_token.
func (p *AuthorizationParameters) ReturnsIDToken() bool {
	return p.ResponseType == IDTokenResponseType || p.ResponseType == IDTokenTokenResponseType
}

// IsSilent reports whether the request asked for silent authentication.
func (p *AuthorizationParameters) IsSilent() bool {
	return p.Prompt == PromptNone
}

// Locale returns the first requested UI locale, or "" when none was sent.
func (p *AuthorizationParameters) Locale() string {
	locales := strings.Fields(p.UILocales)
	if len(locales) == 0 {
		return ""
	}
	return locales[0]
}

// ValidateParametersWithClient validates the authorization parameters against the client.
func (p *AuthorizationParameters) ValidateParametersWithClient(client *clients.Client) error {
	if client.TenantID != "" && p.TenantID != "" && client.TenantID != p.TenantID {
		return ErrClientTenantsMismatch
	}
	if len(p.CodeChallenge) >= 256 {
		return ErrInvalidCodeChallenge
	}
	if !codeChallengeMethodValid(p.CodeChallenge, p.CodeChallengeMethod) {
		return ErrInvalidCodeChallengeMethod
	}
	if client.IsPublic() && p.ResponseType == CodeResponseType && p.CodeChallenge == "" {
		return ErrPKCERequired
	}
	if !client.HasRedirectURI(p.RedirectURI) {
		return ErrInvalidRedirectUri
	}
	if !responseModeValid(p.ResponseMode) {
		return ErrInvalidResponseMode
	}
	if !responseTypeValid(p.ResponseType) {
		return ErrInvalidResponseType
	}
	switch p.Prompt {
	case "", PromptNone, PromptLogin, PromptConsent:
	default:
		return ErrInvalidPrompt
	}
	if err := client.ValidateScopes(p.Scope); err != nil {
		return ErrInvalidScope
	}
	return nil
}

func codeChallengeMethodValid(codeChallenge string, challengeMethod CodeMethodType) bool {
	if strings.TrimSpace(codeChallenge) == "" {
		return true
	}
	switch challengeMethod {
	case CodeMethodTypeS256, CodeMethodTypeNone:
		return true
	}
	return false
}

func responseModeValid(responseMode ResponseModeType) bool {
	switch responseMode {
	case "", QueryResponseMode, FragmentResponseMode, FormPostResponseMode, WebMessageResponseMode:
		return true
	}
	return false
}

func responseTypeValid(responseType ResponseType) bool {
	return slices.Contains([]ResponseType{
		CodeResponseType,
		TokenResponseType,
		IDTokenResponseType,
		IDTokenTokenResponseType,
	}, responseType)
}
