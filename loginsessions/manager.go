package loginsessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/jrsteele09/go-auth-engine/oauthmodel"
	"github.com/pkg/errors"
)

// Manager owns the login session state machine. All transitions go through it.
type Manager struct {
	repo Repo
	now  func() time.Time
}

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(repo Repo, options ...ManagerOption) *Manager {
	m := &Manager{repo: repo, now: time.Now}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *Manager) Repo() Repo {
	return m.repo
}

// Create starts a pending login session for an authorization request.
func (m *Manager) Create(ctx context.Context, tenantID string, params oauthmodel.AuthorizationParameters, lifetime time.Duration, ip, userAgent string) (*LoginSession, error) {
	csrf := make([]byte, 24)
	if _, err := rand.Read(csrf); err != nil {
		return nil, errors.Wrap(err, "[LoginSessions.Create] rand.Read")
	}
	now := m.now()
	params.TenantID = tenantID
	ls := &LoginSession{
		ID:         NewID(now),
		TenantID:   tenantID,
		AuthParams: params,
		State:      StatePending,
		CSRFToken:  base64.RawURLEncoding.EncodeToString(csrf),
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(lifetime),
	}
	if err := m.repo.Create(ctx, ls); err != nil {
		return nil, errors.Wrap(err, "[LoginSessions.Create] repo.Create")
	}
	return ls, nil
}

// Get returns an unexpired login session.
func (m *Manager) Get(ctx context.Context, tenantID, id string) (*LoginSession, error) {
	if id == "" {
		return nil, ErrLoginSessionNotFound
	}
	ls, err := m.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ls.Expired(m.now()) {
		return nil, ErrLoginSessionNotFound
	}
	return ls, nil
}

// Save persists screen-level changes such as the resolved username.
func (m *Manager) Save(ctx context.Context, ls *LoginSession) error {
	ls.UpdatedAt = m.now()
	return m.repo.Update(ctx, ls)
}

// StartContinuation diverts the login session to account management screens. The caller must
// already have verified the user to the level scope requires.
func (m *Manager) StartContinuation(ctx context.Context, ls *LoginSession, scope []string, returnURL string) error {
	ls.State = StateAwaitingContinuation
	ls.StateData.ContinuationScope = slices.Clone(scope)
	ls.StateData.ContinuationReturnURL = returnURL
	ls.StateData.ContinuationVisited = true
	if err := m.Save(ctx, ls); err != nil {
		return errors.Wrap(err, "[LoginSessions.StartContinuation] Save")
	}
	return nil
}

// EndContinuation clears the continuation data when the user comes back through the return URL.
// The original authorization parameters are left untouched.
func (m *Manager) EndContinuation(ctx context.Context, ls *LoginSession) error {
	if ls.State != StateAwaitingContinuation {
		return ErrNotInContinuation
	}
	ls.State = StatePending
	ls.StateData.ContinuationScope = nil
	ls.StateData.ContinuationReturnURL = ""
	if err := m.Save(ctx, ls); err != nil {
		return errors.Wrap(err, "[LoginSessions.EndContinuation] Save")
	}
	return nil
}

// AwaitHook parks the login session until the user completes formID.
func (m *Manager) AwaitHook(ctx context.Context, ls *LoginSession, userID, formID, nodeID string) error {
	ls.State = StateAwaitingHook
	ls.StateData.HookUserID = userID
	ls.StateData.HookFormID = formID
	ls.StateData.HookNodeID = nodeID
	ls.StateData.HookCompleted = false
	if err := m.Save(ctx, ls); err != nil {
		return errors.Wrap(err, "[LoginSessions.AwaitHook] Save")
	}
	return nil
}

// CompleteHook clears a hook wait. It is a no-op unless the session is awaiting a hook, so
// calling it again leaves the session exactly as the first call did. It reports whether
// this call performed the transition.
func (m *Manager) CompleteHook(ctx context.Context, ls *LoginSession) (bool, error) {
	if ls.State != StateAwaitingHook {
		return false, nil
	}
	ls.State = StatePending
	ls.StateData.HookFormID = ""
	ls.StateData.HookNodeID = ""
	ls.StateData.HookCompleted = true
	if err := m.Save(ctx, ls); err != nil {
		return false, errors.Wrap(err, "[LoginSessions.CompleteHook] Save")
	}
	return true, nil
}

// Complete marks the login session as done and links the session that was created for it.
func (m *Manager) Complete(ctx context.Context, ls *LoginSession, sessionID string) error {
	ls.State = StateCompleted
	ls.SessionID = sessionID
	if err := m.Save(ctx, ls); err != nil {
		return errors.Wrap(err, "[LoginSessions.Complete] Save")
	}
	return nil
}
