package clients

import (
	"errors"
	"net/url"
	"slices"
	"strings"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrInvalidScope   = errors.New("invalid scope")
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

type Client struct {
	ID          string     `json:"id" yaml:"id"`
	TenantID    string     `json:"tenantId" yaml:"tenant_id"`
	Name        string     `json:"name" yaml:"name"`
	Type        ClientType `json:"type" yaml:"type"`
	Secret      string     `json:"-" yaml:"secret"`
	Description string     `json:"description,omitempty" yaml:"description"`

	RedirectURIs      []string `json:"redirectURIs" yaml:"redirect_uris"`
	WebOrigins        []string `json:"webOrigins,omitempty" yaml:"web_origins"`
	AllowedLogoutURLs []string `json:"allowedLogoutURLs,omitempty" yaml:"allowed_logout_urls"`

	// Scopes lists the scopes the client may request. Empty means any.
	Scopes []string `json:"scopes" yaml:"scopes"`

	// Connections lists the connection names enabled for the client.
	Connections []string `json:"connections" yaml:"connections"`

	// CrossOriginAuth enables /co/authenticate from the client's web origins.
	CrossOriginAuth bool `json:"crossOriginAuth,omitempty" yaml:"cross_origin_auth"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	return len(c.Scopes) == 0 || slices.Contains(c.Scopes, scope)
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requestedScopes string) error {
	for _, scope := range strings.Fields(requestedScopes) {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

func (c *Client) HasRedirectURI(uri string) bool {
	return uri != "" && slices.Contains(c.RedirectURIs, uri)
}

func (c *Client) HasConnection(name string) bool {
	return slices.Contains(c.Connections, name)
}

// AllowsOrigin reports whether origin is one of the client's web origins, or the origin
// of one of its redirect URIs.
func (c *Client) AllowsOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if slices.Contains(c.WebOrigins, origin) {
		return true
	}
	for _, uri := range c.RedirectURIs {
		if OriginOf(uri) == origin {
			return true
		}
	}
	return false
}

func (c *Client) AllowsLogoutURL(returnTo string) bool {
	return slices.Contains(c.AllowedLogoutURLs, returnTo)
}

// OriginOf returns the scheme://host[:port] part of a URL, or "" if it does not parse.
func OriginOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
