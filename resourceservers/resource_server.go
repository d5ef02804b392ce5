package resourceservers

import (
	"errors"
	"slices"

	"github.com/jrsteele09/go-auth-engine/oauthmodel"
)

var (
	ErrResourceServerNotFound = errors.New("resource server not found")
	ErrClientGrantNotFound    = errors.New("client grant not found")
)

// TokenDialect selects how granted access is expressed in access tokens.
type TokenDialect string

const (
	// DialectAccessToken carries granted access in the "scope" claim.
	DialectAccessToken TokenDialect = "access_token"
	// DialectAccessTokenAuthz carries granted access in a "permissions" claim and leaves "scope" empty.
	DialectAccessTokenAuthz TokenDialect = "access_token_authz"
)

// ResourceServer is an API that access tokens are issued for, identified by its audience.
type ResourceServer struct {
	ID         string   `json:"id" yaml:"id"`
	TenantID   string   `json:"tenant_id" yaml:"tenant_id"`
	Name       string   `json:"name" yaml:"name"`
	Identifier string   `json:"identifier" yaml:"identifier"`
	Scopes     []string `json:"scopes,omitempty" yaml:"scopes"`

	// EnforcePolicies turns on role based access control: users only get scopes they hold as permissions.
	EnforcePolicies bool         `json:"enforce_policies" yaml:"enforce_policies"`
	TokenDialect    TokenDialect `json:"token_dialect,omitempty" yaml:"token_dialect"`
	AllowOffline    bool         `json:"allow_offline_access,omitempty" yaml:"allow_offline_access"`
}

// UserPermission grants a user one permission on a resource server.
type UserPermission struct {
	TenantID                 string `json:"tenant_id" yaml:"tenant_id"`
	UserID                   string `json:"user_id" yaml:"user_id"`
	ResourceServerIdentifier string `json:"resource_server_identifier" yaml:"resource_server_identifier"`
	Permission               string `json:"permission" yaml:"permission"`
}

// ClientGrant authorizes a client to obtain client_credentials tokens for an audience.
type ClientGrant struct {
	ID       string   `json:"id" yaml:"id"`
	TenantID string   `json:"tenant_id" yaml:"tenant_id"`
	ClientID string   `json:"client_id" yaml:"client_id"`
	Audience string   `json:"audience" yaml:"audience"`
	Scope    []string `json:"scope" yaml:"scope"`
}

// AccessClaims is the granted access an access token carries.
type AccessClaims struct {
	Scope       []string
	Permissions []string
	// IncludePermissions is true when the token must carry a permissions claim, even if empty.
	IncludePermissions bool
}

// usesPermissionsClaim reports whether tokens for this resource server carry a permissions claim.
func (rs *ResourceServer) usesPermissionsClaim() bool {
	return rs != nil && rs.EnforcePolicies && rs.TokenDialect == DialectAccessTokenAuthz
}

// Claims resolves the scope and permission claims of a token. requested is what the caller asked
// for; granted is what the subject holds (user permissions or a client grant). When granted is nil
// and policies are not enforced, every requested scope known to the resource server is allowed.
// Identity scopes such as openid are passed through in the scope claim for the scope dialect only.
func (rs *ResourceServer) Claims(requested, granted []string) AccessClaims {
	if rs.usesPermissionsClaim() {
		return AccessClaims{
			Scope:              []string{},
			Permissions:        intersect(requested, granted),
			IncludePermissions: true,
		}
	}

	allowed := granted
	if !rs.enforcing() && granted == nil {
		allowed = rs.allScopes()
	}

	scope := make([]string, 0, len(requested))
	for _, s := range requested {
		if oauthmodel.IsOIDCScope(s) || slices.Contains(allowed, s) {
			scope = append(scope, s)
		}
	}
	return AccessClaims{Scope: scope}
}

func (rs *ResourceServer) enforcing() bool {
	return rs != nil && rs.EnforcePolicies
}

func (rs *ResourceServer) allScopes() []string {
	if rs == nil {
		return nil
	}
	return rs.Scopes
}

func intersect(requested, granted []string) []string {
	out := make([]string, 0, len(requested))
	for _, s := range requested {
		if slices.Contains(granted, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
