package userrepofakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-engine/users"
)

var _ users.PasswordRepo = (*FakePasswordRepo)(nil)

type FakePasswordRepo struct {
	passwords map[string]users.Password // tenantID|userID -> password
	lock      sync.RWMutex
}

func NewFakePasswordRepo() *FakePasswordRepo {
	return &FakePasswordRepo{
		passwords: make(map[string]users.Password),
	}
}

func (r *FakePasswordRepo) Get(_ context.Context, tenantID, userID string) (*users.Password, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	p, ok := r.passwords[tenantID+"|"+userID]
	if !ok {
		return nil, users.ErrPasswordNotFound
	}
	return &p, nil
}

func (r *FakePasswordRepo) Create(_ context.Context, password *users.Password) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.passwords[password.TenantID+"|"+password.UserID] = *password
	return nil
}

func (r *FakePasswordRepo) Remove(_ context.Context, tenantID, userID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.passwords, tenantID+"|"+userID)
	return nil
}
