package clientrepofakes

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type clientKey struct {
	tenantID string
	clientID string
}

type FakeClientRepo struct {
	clients map[clientKey]clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[clientKey]clients.Client),
	}
}

func (r *FakeClientRepo) Upsert(_ context.Context, client *clients.Client) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	r.clients[clientKey{client.TenantID, client.ID}] = *client
	return nil
}

func (r *FakeClientRepo) Delete(_ context.Context, tenantID, clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.clients, clientKey{tenantID, clientID})
	return nil
}

func (r *FakeClientRepo) Get(_ context.Context, tenantID, clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clientKey{tenantID, clientID}]
	if !ok {
		return nil, clients.ErrClientNotFound
	}
	return &client, nil
}

func (r *FakeClientRepo) List(_ context.Context, tenantID string) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*clients.Client, 0)
	for k, v := range r.clients {
		if k.tenantID != tenantID {
			continue
		}
		list = append(list, &v)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}
