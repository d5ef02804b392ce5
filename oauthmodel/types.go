package oauthmodel

import "strings"

// ResponseType represents the OAuth 2.0 / OIDC response type requested at the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType returns an authorization code that is exchanged at the token endpoint.
	CodeResponseType ResponseType = "code"
	// TokenResponseType returns an access token directly (implicit).
	TokenResponseType ResponseType = "token"
	// IDTokenResponseType returns only an id_token (implicit, OIDC).
	IDTokenResponseType ResponseType = "id_token"
	// IDTokenTokenResponseType returns both an id_token and an access token.
	IDTokenTokenResponseType ResponseType = "id_token token"
)

// ResponseModeType denotes how the authorization response parameters are returned to the client.
type ResponseModeType string

const (
	// QueryResponseMode returns parameters in the redirect URL query string.
	// Example: https://client.example.com/callback?code=ABC123&state=xyz
	QueryResponseMode ResponseModeType = "query"

	// FragmentResponseMode returns parameters in the URL fragment, never sent to the client's server.
	// Example: https://client.example.com/callback#access_token=ABC123&state=xyz
	FragmentResponseMode ResponseModeType = "fragment"

	// FormPostResponseMode returns parameters via an auto-submitting HTML form.
	FormPostResponseMode ResponseModeType = "form_post"

	// WebMessageResponseMode returns an HTML document that posts the result to the opener window.
	WebMessageResponseMode ResponseModeType = "web_message"
)

// CodeMethodType represents the PKCE code challenge method.
type CodeMethodType string

const (
	// CodeMethodTypeS256: code_challenge = BASE64URL(SHA256(code_verifier))
	CodeMethodTypeS256 CodeMethodType = "S256"
	// CodeMethodTypeNone (labeled "plain"): code_challenge = code_verifier
	CodeMethodTypeNone CodeMethodType = "plain"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	AuthorizationCodeGrant     GrantType = "authorization_code"
	ClientCredentialsCodeGrant GrantType = "client_credentials"
	RefreshTokenCodeGrant      GrantType = "refresh_token"
)

// Prompt values understood by the authorization endpoint.
const (
	PromptNone    = "none"
	PromptLogin   = "login"
	PromptConsent = "consent"
)

// Scopes with a fixed meaning.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeOfflineAccess = "offline_access"
)

// IsOIDCScope reports whether scope is one of the identity scopes that never needs a permission grant.
func IsOIDCScope(scope string) bool {
	switch scope {
	case ScopeOpenID, ScopeProfile, ScopeEmail, ScopeOfflineAccess, "phone", "address":
		return true
	}
	return false
}

// SplitScope splits a space separated scope string, dropping empty entries.
func SplitScope(scope string) []string {
	return strings.Fields(scope)
}

// JoinScope joins scopes into the space separated wire form.
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}
