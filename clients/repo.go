package clients

import "context"

type Repo interface {
	Upsert(ctx context.Context, client *Client) error
	Delete(ctx context.Context, tenantID, clientID string) error
	Get(ctx context.Context, tenantID, clientID string) (*Client, error)
	List(ctx context.Context, tenantID string) ([]*Client, error)
}
