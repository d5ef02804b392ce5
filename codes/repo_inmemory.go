package codes

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Repo = (*InMemoryCodeRepo)(nil)

type codeKey struct {
	tenantID string
	codeType CodeType
	codeID   string
}

// InMemoryCodeRepo is an in-memory implementation of Repo
type InMemoryCodeRepo struct {
	mu    sync.Mutex
	codes map[codeKey]Code
	now   func() time.Time
}

func NewInMemoryCodeRepo(now func() time.Time) *InMemoryCodeRepo {
	if now == nil {
		now = time.Now
	}
	return &InMemoryCodeRepo{
		codes: make(map[codeKey]Code),
		now:   now,
	}
}

func (r *InMemoryCodeRepo) Create(_ context.Context, code *Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := codeKey{code.TenantID, code.CodeType, code.CodeID}
	if existing, ok := r.codes[key]; ok && !existing.Expired(r.now()) {
		return ErrCodeExists
	}
	r.codes[key] = *code
	return nil
}

func (r *InMemoryCodeRepo) Get(_ context.Context, tenantID, codeID string, codeType CodeType) (*Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.codes[codeKey{tenantID, codeType, codeID}]
	if !ok || code.Expired(r.now()) {
		return nil, ErrCodeNotFound
	}
	return &code, nil
}

func (r *InMemoryCodeRepo) Remove(_ context.Context, tenantID, codeID string, codeType CodeType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := codeKey{tenantID, codeType, codeID}
	if _, ok := r.codes[key]; !ok {
		return ErrCodeNotFound
	}
	delete(r.codes, key)
	return nil
}

func (r *InMemoryCodeRepo) RemoveExpired(_ context.Context, filter CleanupFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expired := make([]codeKey, 0)
	for k, c := range r.codes {
		if filter.Before.Before(c.ExpiresAt) {
			continue
		}
		if filter.TenantID != "" && c.TenantID != filter.TenantID {
			continue
		}
		if filter.UserID != "" && c.UserID != filter.UserID {
			continue
		}
		expired = append(expired, k)
	}
	sort.Slice(expired, func(i, j int) bool {
		return r.codes[expired[i]].ExpiresAt.Before(r.codes[expired[j]].ExpiresAt)
	})
	if filter.Limit > 0 && len(expired) > filter.Limit {
		expired = expired[:filter.Limit]
	}
	for _, k := range expired {
		delete(r.codes, k)
	}
	return len(expired), nil
}
