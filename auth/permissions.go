package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/resourceservers"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/pkg/errors"
)

// resourceServer returns the resource server for audience, or nil when none is registered.
func (as *AuthorizationService) resourceServer(ctx context.Context, tenant *tenants.Tenant, audience string) (*resourceservers.ResourceServer, string, error) {
	if audience == "" {
		audience = tenant.Audience
	}
	if audience == "" {
		return nil, "", nil
	}
	rs, err := as.repos.ResourceServers.GetByIdentifier(ctx, tenant.ID, audience)
	if errors.Is(err, resourceservers.ErrResourceServerNotFound) {
		return nil, audience, nil
	}
	if err != nil {
		return nil, audience, transient("[AuthorizationService.resourceServer] GetByIdentifier", err)
	}
	return rs, audience, nil
}

// userAccessClaims resolves scope and permissions of a user's access token. Users only get
// scopes they hold as permissions when the resource server enforces policies.
func (as *AuthorizationService) userAccessClaims(ctx context.Context, tenant *tenants.Tenant, audience string, requested []string, userID string) (resourceservers.AccessClaims, error) {
	rs, audience, err := as.resourceServer(ctx, tenant, audience)
	if err != nil {
		return resourceservers.AccessClaims{}, err
	}
	var granted []string
	if rs != nil && rs.EnforcePolicies {
		granted, err = as.repos.Permissions.ListForUser(ctx, tenant.ID, userID, audience)
		if err != nil {
			return resourceservers.AccessClaims{}, transient("[AuthorizationService.userAccessClaims] ListForUser", err)
		}
		if granted == nil {
			granted = []string{}
		}
	}
	return rs.Claims(requested, granted), nil
}

// clientAccessClaims resolves the claims of a client_credentials token from the client grant.
func (as *AuthorizationService) clientAccessClaims(ctx context.Context, tenant *tenants.Tenant, clientID, audience string, requested []string) (resourceservers.AccessClaims, string, error) {
	rs, audience, err := as.resourceServer(ctx, tenant, audience)
	if err != nil {
		return resourceservers.AccessClaims{}, "", err
	}
	if audience == "" {
		return resourceservers.AccessClaims{}, "", invalidRequest("audience is required", nil)
	}
	grant, err := as.repos.ClientGrants.Get(ctx, tenant.ID, clientID, audience)
	if errors.Is(err, resourceservers.ErrClientGrantNotFound) {
		return resourceservers.AccessClaims{}, "", unauthorizedClient("The client is not authorized to access " + audience)
	}
	if err != nil {
		return resourceservers.AccessClaims{}, "", transient("[AuthorizationService.clientAccessClaims] Get", err)
	}
	granted := grant.Scope
	if granted == nil {
		granted = []string{}
	}
	if len(requested) == 0 {
		requested = granted
	}
	return rs.Claims(requested, granted), audience, nil
}
