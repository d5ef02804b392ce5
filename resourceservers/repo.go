package resourceservers

import "context"

type Repo interface {
	Upsert(ctx context.Context, rs *ResourceServer) error
	GetByIdentifier(ctx context.Context, tenantID, identifier string) (*ResourceServer, error)
}

type PermissionRepo interface {
	Add(ctx context.Context, permission *UserPermission) error
	// ListForUser returns the permission names the user holds on the resource server.
	ListForUser(ctx context.Context, tenantID, userID, resourceServerIdentifier string) ([]string, error)
}

type ClientGrantRepo interface {
	Upsert(ctx context.Context, grant *ClientGrant) error
	Get(ctx context.Context, tenantID, clientID, audience string) (*ClientGrant, error)
}
