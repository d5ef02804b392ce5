package loginsessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ Repo = (*InMemoryLoginSessionRepo)(nil)

// InMemoryLoginSessionRepo is an in-memory implementation of Repo
type InMemoryLoginSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]map[string]LoginSession // tenantID -> id -> LoginSession
	now      func() time.Time
}

func NewInMemoryLoginSessionRepo(now func() time.Time) *InMemoryLoginSessionRepo {
	if now == nil {
		now = time.Now
	}
	return &InMemoryLoginSessionRepo{
		sessions: make(map[string]map[string]LoginSession),
		now:      now,
	}
}

func (r *InMemoryLoginSessionRepo) Create(_ context.Context, ls *LoginSession) error {
	if ls.TenantID == "" || ls.ID == "" {
		return fmt.Errorf("tenantID and id are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[ls.TenantID]; !ok {
		r.sessions[ls.TenantID] = make(map[string]LoginSession)
	}
	if _, ok := r.sessions[ls.TenantID][ls.ID]; ok {
		return fmt.Errorf("login session %s already exists", ls.ID)
	}
	r.sessions[ls.TenantID][ls.ID] = clone(ls)
	return nil
}

func (r *InMemoryLoginSessionRepo) Get(_ context.Context, tenantID, id string) (*LoginSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ls, ok := r.sessions[tenantID][id]
	if !ok || ls.Expired(r.now()) {
		return nil, ErrLoginSessionNotFound
	}
	c := clone(&ls)
	return &c, nil
}

func (r *InMemoryLoginSessionRepo) Update(_ context.Context, ls *LoginSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sessions[ls.TenantID][ls.ID]
	if !ok || existing.Expired(r.now()) {
		return ErrLoginSessionNotFound
	}
	r.sessions[ls.TenantID][ls.ID] = clone(ls)
	return nil
}

func (r *InMemoryLoginSessionRepo) Remove(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenantSessions, ok := r.sessions[tenantID]
	if !ok {
		return nil
	}
	delete(tenantSessions, id)
	if len(tenantSessions) == 0 {
		delete(r.sessions, tenantID)
	}
	return nil
}

func (r *InMemoryLoginSessionRepo) ListExpired(_ context.Context, filter CleanupFilter) ([]*LoginSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*LoginSession, 0)
	for tenantID, tenantSessions := range r.sessions {
		if filter.TenantID != "" && tenantID != filter.TenantID {
			continue
		}
		for _, ls := range tenantSessions {
			if filter.Before.Before(ls.ExpiresAt) {
				continue
			}
			if filter.UserID != "" && ls.StateData.UserID != filter.UserID {
				continue
			}
			c := clone(&ls)
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ExpiresAt.Equal(list[j].ExpiresAt) {
			return list[i].ExpiresAt.Before(list[j].ExpiresAt)
		}
		return list[i].ID < list[j].ID
	})
	if filter.Offset >= len(list) {
		return list[:0], nil
	}
	list = list[filter.Offset:]
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func clone(ls *LoginSession) LoginSession {
	c := *ls
	c.StateData.ContinuationScope = append([]string(nil), ls.StateData.ContinuationScope...)
	return c
}
