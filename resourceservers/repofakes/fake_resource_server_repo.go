package resourceserverrepofakes

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/resourceservers"
)

var (
	_ resourceservers.Repo            = (*FakeResourceServerRepo)(nil)
	_ resourceservers.PermissionRepo  = (*FakePermissionRepo)(nil)
	_ resourceservers.ClientGrantRepo = (*FakeClientGrantRepo)(nil)
)

type FakeResourceServerRepo struct {
	servers map[string]resourceservers.ResourceServer // tenant|identifier
	lock    sync.RWMutex
}

func NewFakeResourceServerRepo() *FakeResourceServerRepo {
	return &FakeResourceServerRepo{servers: make(map[string]resourceservers.ResourceServer)}
}

func (r *FakeResourceServerRepo) Upsert(_ context.Context, rs *resourceservers.ResourceServer) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if rs.ID == "" {
		rs.ID = uuid.New().String()
	}
	r.servers[rs.TenantID+"|"+rs.Identifier] = *rs
	return nil
}

func (r *FakeResourceServerRepo) GetByIdentifier(_ context.Context, tenantID, identifier string) (*resourceservers.ResourceServer, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	rs, ok := r.servers[tenantID+"|"+identifier]
	if !ok {
		return nil, resourceservers.ErrResourceServerNotFound
	}
	return &rs, nil
}

type FakePermissionRepo struct {
	permissions []resourceservers.UserPermission
	lock        sync.RWMutex
}

func NewFakePermissionRepo() *FakePermissionRepo {
	return &FakePermissionRepo{}
}

func (r *FakePermissionRepo) Add(_ context.Context, permission *resourceservers.UserPermission) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.permissions = append(r.permissions, *permission)
	return nil
}

func (r *FakePermissionRepo) ListForUser(_ context.Context, tenantID, userID, resourceServerIdentifier string) ([]string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]string, 0)
	for _, p := range r.permissions {
		if p.TenantID == tenantID && p.UserID == userID && p.ResourceServerIdentifier == resourceServerIdentifier &&
			!slices.Contains(list, p.Permission) {
			list = append(list, p.Permission)
		}
	}
	return list, nil
}

type FakeClientGrantRepo struct {
	grants map[string]resourceservers.ClientGrant // tenant|client|audience
	lock   sync.RWMutex
}

func NewFakeClientGrantRepo() *FakeClientGrantRepo {
	return &FakeClientGrantRepo{grants: make(map[string]resourceservers.ClientGrant)}
}

func (r *FakeClientGrantRepo) Upsert(_ context.Context, grant *resourceservers.ClientGrant) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if grant.ID == "" {
		grant.ID = "cgr_" + uuid.New().String()
	}
	r.grants[grant.TenantID+"|"+grant.ClientID+"|"+grant.Audience] = *grant
	return nil
}

func (r *FakeClientGrantRepo) Get(_ context.Context, tenantID, clientID, audience string) (*resourceservers.ClientGrant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	g, ok := r.grants[tenantID+"|"+clientID+"|"+audience]
	if !ok {
		return nil, resourceservers.ErrClientGrantNotFound
	}
	return &g, nil
}
