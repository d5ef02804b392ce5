package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultLifetime     = 30 * 24 * time.Hour
	DefaultIdleLifetime = 3 * 24 * time.Hour
	tokenLength         = 32
)

// Manager handles refresh token creation, use and revocation
type Manager struct {
	repo         Repo
	lifetime     time.Duration
	idleLifetime time.Duration
	now          func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func WithLifetimes(lifetime, idle time.Duration) ManagerOption {
	return func(m *Manager) {
		if lifetime > 0 {
			m.lifetime = lifetime
		}
		if idle > 0 {
			m.idleLifetime = idle
		}
	}
}

func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:         repo,
		lifetime:     DefaultLifetime,
		idleLifetime: DefaultIdleLifetime,
		now:          time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Manager) Repo() Repo {
	return m.repo
}

// Create stores a new refresh token built from template and returns it with its value set.
func (m *Manager) Create(ctx context.Context, template RefreshToken) (*RefreshToken, error) {
	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, errors.Wrap(err, "[Refresh.Create] rand.Read")
	}
	now := m.now()
	rt := template
	rt.ID = hex.EncodeToString(tokenBytes)
	rt.CreatedAt = now
	rt.ExpiresAt = now.Add(m.lifetime)
	rt.IdleExpiresAt = now.Add(m.idleLifetime)
	rt.UsedAt = nil
	rt.RevokedAt = nil
	if err := m.repo.Create(ctx, &rt); err != nil {
		return nil, errors.Wrap(err, "[Refresh.Create] repo.Create")
	}
	return &rt, nil
}

// Use validates the token and slides its idle expiry forward.
func (m *Manager) Use(ctx context.Context, tenantID, id string) (*RefreshToken, error) {
	rt, err := m.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if !rt.IsActive(now) {
		return nil, ErrRefreshTokenInactive
	}
	rt.UsedAt = &now
	rt.IdleExpiresAt = now.Add(m.idleLifetime)
	if err := m.repo.Update(ctx, rt); err != nil {
		return nil, errors.Wrap(err, "[Refresh.Use] repo.Update")
	}
	return rt, nil
}

func (m *Manager) Revoke(ctx context.Context, tenantID, id string) error {
	rt, err := m.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	now := m.now()
	rt.RevokedAt = &now
	return m.repo.Update(ctx, rt)
}
