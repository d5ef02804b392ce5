package sessions

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

var _ Repo = (*InMemorySessionRepo)(nil)

type InMemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Session // tenantID -> id -> Session
}

func NewInMemorySessionRepo() *InMemorySessionRepo {
	return &InMemorySessionRepo{sessions: make(map[string]map[string]Session)}
}

func (r *InMemorySessionRepo) Create(_ context.Context, s *Session) error {
	if s.TenantID == "" || s.ID == "" {
		return fmt.Errorf("tenantID and id are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.TenantID]; !ok {
		r.sessions[s.TenantID] = make(map[string]Session)
	}
	if _, ok := r.sessions[s.TenantID][s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	r.sessions[s.TenantID][s.ID] = clone(s)
	return nil
}

func (r *InMemorySessionRepo) Get(_ context.Context, tenantID, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[tenantID][id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	c := clone(&s)
	return &c, nil
}

func (r *InMemorySessionRepo) Update(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.TenantID][s.ID]; !ok {
		return ErrSessionNotFound
	}
	r.sessions[s.TenantID][s.ID] = clone(s)
	return nil
}

func (r *InMemorySessionRepo) Remove(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions[tenantID], id)
	return nil
}

func (r *InMemorySessionRepo) ListExpired(_ context.Context, filter CleanupFilter) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Session, 0)
	for tenantID, tenantSessions := range r.sessions {
		if filter.TenantID != "" && tenantID != filter.TenantID {
			continue
		}
		for _, s := range tenantSessions {
			if filter.Before.Before(s.Expiry()) {
				continue
			}
			if filter.UserID != "" && s.UserID != filter.UserID {
				continue
			}
			c := clone(&s)
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Expiry().Equal(list[j].Expiry()) {
			return list[i].Expiry().Before(list[j].Expiry())
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

func (r *InMemorySessionRepo) HasActiveForLoginSession(_ context.Context, tenantID, loginSessionID string, now time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions[tenantID] {
		if s.LoginSessionID == loginSessionID && s.IsActive(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *InMemorySessionRepo) ListForUser(_ context.Context, tenantID, userID string) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Session, 0)
	for _, s := range r.sessions[tenantID] {
		if s.UserID == userID {
			c := clone(&s)
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

func clone(s *Session) Session {
	c := *s
	c.Clients = slices.Clone(s.Clients)
	return c
}
