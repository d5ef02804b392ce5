package connectionrepofakes

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/connections"
)

var _ connections.Repo = (*FakeConnectionRepo)(nil)

type FakeConnectionRepo struct {
	connections map[string]connections.Connection
	lock        sync.RWMutex
}

func NewFakeConnectionRepo() *FakeConnectionRepo {
	return &FakeConnectionRepo{
		connections: make(map[string]connections.Connection),
	}
}

func (r *FakeConnectionRepo) Upsert(_ context.Context, connection *connections.Connection) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if connection.ID == "" {
		connection.ID = "con_" + uuid.New().String()
	}
	r.connections[connection.ID] = *connection
	return nil
}

func (r *FakeConnectionRepo) Get(_ context.Context, tenantID, connectionID string) (*connections.Connection, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	c, ok := r.connections[connectionID]
	if !ok || c.TenantID != tenantID {
		return nil, connections.ErrConnectionNotFound
	}
	return &c, nil
}

func (r *FakeConnectionRepo) GetByName(_ context.Context, tenantID, name string) (*connections.Connection, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, c := range r.connections {
		if c.TenantID == tenantID && c.Name == name {
			return &c, nil
		}
	}
	return nil, connections.ErrConnectionNotFound
}

func (r *FakeConnectionRepo) List(_ context.Context, tenantID string) ([]*connections.Connection, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]*connections.Connection, 0)
	for _, c := range r.connections {
		if c.TenantID == tenantID {
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list, nil
}
