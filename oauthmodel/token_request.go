package oauthmodel

import "net/url"

// TokenRequest holds the parameters of a token endpoint request.
type TokenRequest struct {
	TenantID  string
	GrantType GrantType

	ClientID string
	// ClientSecret is required for confidential clients. Never log it.
	ClientSecret string

	// Code and CodeVerifier are used by the authorization_code grant.
	Code         string
	CodeVerifier string
	RedirectURI  string

	// RefreshToken is used by the refresh_token grant.
	RefreshToken string

	// Scope and Audience are used by the client_credentials grant.
	Scope    string
	Audience string
}

// ParseTokenRequest reads a token request from a parsed form.
func ParseTokenRequest(form url.Values) TokenRequest {
	return TokenRequest{
		GrantType:    GrantType(form.Get("grant_type")),
		ClientID:     form.Get("client_id"),
		ClientSecret: form.Get("client_secret"),
		Code:         form.Get("code"),
		CodeVerifier: form.Get("code_verifier"),
		RedirectURI:  form.Get("redirect_uri"),
		RefreshToken: form.Get("refresh_token"),
		Scope:        form.Get("scope"),
		Audience:     form.Get("audience"),
	}
}

// TokenResponse is the token endpoint response (RFC 6749 section 5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
