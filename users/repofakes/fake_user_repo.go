package userrepofakes

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users map[string]users.User
	lock  sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make(map[string]users.User),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = user.Provider + "|" + uuid.New().String()
	}
	if _, ok := ur.users[user.ID]; ok {
		return users.ErrUserExists
	}
	ur.users[user.ID] = clone(user)
	return nil
}

func (ur *FakeUserRepo) Update(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.users[user.ID]
	if !ok || existing.TenantID != user.TenantID {
		return users.ErrUserNotFound
	}
	ur.users[user.ID] = clone(user)
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, tenantID, userID string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[userID]
	if !ok || u.TenantID != tenantID {
		return users.ErrUserNotFound
	}
	delete(ur.users, userID)
	return nil
}

func (ur *FakeUserRepo) Get(_ context.Context, tenantID, userID string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[userID]
	if !ok || u.TenantID != tenantID {
		return nil, users.ErrUserNotFound
	}
	c := clone(&u)
	return &c, nil
}

func (ur *FakeUserRepo) Find(_ context.Context, tenantID, provider, identifier string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	for _, u := range ur.sorted() {
		if u.TenantID == tenantID && u.Provider == provider && u.Matches(identifier) {
			c := clone(&u)
			return &c, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (ur *FakeUserRepo) FindBySubject(_ context.Context, tenantID, connection, subject string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	for _, u := range ur.sorted() {
		if u.TenantID == tenantID && u.Connection == connection && u.Subject == subject {
			c := clone(&u)
			return &c, nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (ur *FakeUserRepo) ListByEmail(_ context.Context, tenantID, email string) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	list := make([]*users.User, 0)
	for _, u := range ur.sorted() {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			c := clone(&u)
			list = append(list, &c)
		}
	}
	return list, nil
}

// sorted keeps lookups deterministic when several users match.
func (ur *FakeUserRepo) sorted() []users.User {
	list := make([]users.User, 0, len(ur.users))
	for _, u := range ur.users {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt) ||
			(list[i].CreatedAt.Equal(list[j].CreatedAt) && list[i].ID < list[j].ID)
	})
	return list
}

func clone(u *users.User) users.User {
	c := *u
	c.AppMetadata.FailedLogins = append([]int64(nil), u.AppMetadata.FailedLogins...)
	if u.UserMetadata != nil {
		c.UserMetadata = make(map[string]string, len(u.UserMetadata))
		for k, v := range u.UserMetadata {
			c.UserMetadata[k] = v
		}
	}
	return c
}
