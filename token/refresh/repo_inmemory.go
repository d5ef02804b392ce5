package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ Repo = (*InMemoryRefreshTokenRepo)(nil)

type InMemoryRefreshTokenRepo struct {
	mu     sync.RWMutex
	tokens map[string]map[string]RefreshToken // tenantID -> id -> RefreshToken
}

func NewInMemoryRefreshTokenRepo() *InMemoryRefreshTokenRepo {
	return &InMemoryRefreshTokenRepo{tokens: make(map[string]map[string]RefreshToken)}
}

func (r *InMemoryRefreshTokenRepo) Create(_ context.Context, rt *RefreshToken) error {
	if rt.TenantID == "" || rt.ID == "" {
		return fmt.Errorf("tenantID and id are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[rt.TenantID]; !ok {
		r.tokens[rt.TenantID] = make(map[string]RefreshToken)
	}
	if _, ok := r.tokens[rt.TenantID][rt.ID]; ok {
		return fmt.Errorf("refresh token already exists")
	}
	r.tokens[rt.TenantID][rt.ID] = *rt
	return nil
}

func (r *InMemoryRefreshTokenRepo) Get(_ context.Context, tenantID, id string) (*RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.tokens[tenantID][id]
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}
	return &rt, nil
}

func (r *InMemoryRefreshTokenRepo) Update(_ context.Context, rt *RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[rt.TenantID][rt.ID]; !ok {
		return ErrRefreshTokenNotFound
	}
	r.tokens[rt.TenantID][rt.ID] = *rt
	return nil
}

func (r *InMemoryRefreshTokenRepo) Remove(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens[tenantID], id)
	return nil
}

func (r *InMemoryRefreshTokenRepo) ListExpired(_ context.Context, filter CleanupFilter) ([]*RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*RefreshToken, 0)
	for tenantID, tenantTokens := range r.tokens {
		if filter.TenantID != "" && tenantID != filter.TenantID {
			continue
		}
		for _, rt := range tenantTokens {
			if filter.Before.Before(rt.Expiry()) {
				continue
			}
			if filter.UserID != "" && rt.UserID != filter.UserID {
				continue
			}
			c := rt
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

func (r *InMemoryRefreshTokenRepo) HasActiveForSession(_ context.Context, tenantID, sessionID string, now time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.tokens[tenantID] {
		if rt.SessionID == sessionID && rt.IsActive(now) {
			return true, nil
		}
	}
	return false, nil
}
