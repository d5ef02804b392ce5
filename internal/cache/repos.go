package cache

import (
	"context"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/connections"
	"github.com/jrsteele09/go-auth-engine/tenants"
)

// TenantRepo caches tenant reads. Writes go straight through and invalidate.
type TenantRepo struct {
	tenants.Repo
	cache *Cache
}

var _ tenants.Repo = (*TenantRepo)(nil)

func NewTenantRepo(next tenants.Repo, cache *Cache) *TenantRepo {
	return &TenantRepo{Repo: next, cache: cache}
}

func (r *TenantRepo) Get(ctx context.Context, tenantID string) (*tenants.Tenant, error) {
	v, err := r.cache.Fetch("tenant:"+tenantID, func() (any, error) {
		return r.Repo.Get(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	t := *v.(*tenants.Tenant)
	return &t, nil
}

func (r *TenantRepo) Upsert(ctx context.Context, tenant *tenants.Tenant) error {
	defer r.cache.Delete("tenant:" + tenant.ID)
	return r.Repo.Upsert(ctx, tenant)
}

func (r *TenantRepo) Delete(ctx context.Context, tenantID string) error {
	defer r.cache.Delete("tenant:" + tenantID)
	return r.Repo.Delete(ctx, tenantID)
}

// ClientRepo caches client reads.
type ClientRepo struct {
	clients.Repo
	cache *Cache
}

var _ clients.Repo = (*ClientRepo)(nil)

func NewClientRepo(next clients.Repo, cache *Cache) *ClientRepo {
	return &ClientRepo{Repo: next, cache: cache}
}

func (r *ClientRepo) Get(ctx context.Context, tenantID, clientID string) (*clients.Client, error) {
	v, err := r.cache.Fetch("client:"+tenantID+"/"+clientID, func() (any, error) {
		return r.Repo.Get(ctx, tenantID, clientID)
	})
	if err != nil {
		return nil, err
	}
	c := *v.(*clients.Client)
	return &c, nil
}

func (r *ClientRepo) Upsert(ctx context.Context, client *clients.Client) error {
	defer r.cache.Delete("client:" + client.TenantID + "/" + client.ID)
	return r.Repo.Upsert(ctx, client)
}

func (r *ClientRepo) Delete(ctx context.Context, tenantID, clientID string) error {
	defer r.cache.Delete("client:" + tenantID + "/" + clientID)
	return r.Repo.Delete(ctx, tenantID, clientID)
}

// ConnectionRepo caches connection reads by id and by name.
type ConnectionRepo struct {
	connections.Repo
	cache *Cache
}

var _ connections.Repo = (*ConnectionRepo)(nil)

func NewConnectionRepo(next connections.Repo, cache *Cache) *ConnectionRepo {
	return &ConnectionRepo{Repo: next, cache: cache}
}

func (r *ConnectionRepo) Get(ctx context.Context, tenantID, connectionID string) (*connections.Connection, error) {
	v, err := r.cache.Fetch("connection:"+tenantID+"/id/"+connectionID, func() (any, error) {
		return r.Repo.Get(ctx, tenantID, connectionID)
	})
	if err != nil {
		return nil, err
	}
	c := *v.(*connections.Connection)
	return &c, nil
}

func (r *ConnectionRepo) GetByName(ctx context.Context, tenantID, name string) (*connections.Connection, error) {
	v, err := r.cache.Fetch("connection:"+tenantID+"/name/"+name, func() (any, error) {
		return r.Repo.GetByName(ctx, tenantID, name)
	})
	if err != nil {
		return nil, err
	}
	c := *v.(*connections.Connection)
	return &c, nil
}

func (r *ConnectionRepo) List(ctx context.Context, tenantID string) ([]*connections.Connection, error) {
	v, err := r.cache.Fetch("connection:"+tenantID+"/list", func() (any, error) {
		return r.Repo.List(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	list := v.([]*connections.Connection)
	out := make([]*connections.Connection, len(list))
	for i, c := range list {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (r *ConnectionRepo) Upsert(ctx context.Context, connection *connections.Connection) error {
	defer r.cache.DeletePrefix("connection:" + connection.TenantID + "/")
	return r.Repo.Upsert(ctx, connection)
}
