package connections

import "context"

type Repo interface {
	Upsert(ctx context.Context, connection *Connection) error
	Get(ctx context.Context, tenantID, connectionID string) (*Connection, error)
	GetByName(ctx context.Context, tenantID, name string) (*Connection, error)
	List(ctx context.Context, tenantID string) ([]*Connection, error)
}
