package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-engine/sessions"
)

var _ sessions.Repo = (*SessionRepo)(nil)

type SessionRepo struct {
	db *sql.DB
}

const sessionColumns = `tenant_id, id, user_id, login_session_id, clients, device, created_at, updated_at,
	authenticated_at, expires_at, idle_expires_at, used_at, revoked_at`

// effective expiry: the earlier of the absolute and the idle expiry
const sessionExpiry = `MIN(expires_at, CASE WHEN idle_expires_at > 0 THEN idle_expires_at ELSE expires_at END)`

func (r *SessionRepo) Create(ctx context.Context, s *sessions.Session) error {
	clients, device, err := marshalSession(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.TenantID, s.ID, s.UserID, s.LoginSessionID, clients, device,
		toMillis(s.CreatedAt), toMillis(s.UpdatedAt), toMillis(s.AuthenticatedAt), toMillis(s.ExpiresAt),
		toMillis(s.IdleExpiresAt), toNullMillis(s.UsedAt), toNullMillis(s.RevokedAt))
	if err != nil {
		return fmt.Errorf("[sqlite.Sessions.Create] insert: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, tenantID, id string) (*sessions.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE tenant_id = ? AND id = ?`, tenantID, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sessions.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlite.Sessions.Get] select: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) Update(ctx context.Context, s *sessions.Session) error {
	clients, device, err := marshalSession(s)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE sessions SET user_id = ?, login_session_id = ?, clients = ?, device = ?,
		updated_at = ?, authenticated_at = ?, expires_at = ?, idle_expires_at = ?, used_at = ?, revoked_at = ?
		WHERE tenant_id = ? AND id = ?`,
		s.UserID, s.LoginSessionID, clients, device, toMillis(s.UpdatedAt), toMillis(s.AuthenticatedAt),
		toMillis(s.ExpiresAt), toMillis(s.IdleExpiresAt), toNullMillis(s.UsedAt), toNullMillis(s.RevokedAt),
		s.TenantID, s.ID)
	if err != nil {
		return fmt.Errorf("[sqlite.Sessions.Update] update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sessions.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepo) Remove(ctx context.Context, tenantID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE tenant_id = ? AND id = ?`, tenantID, id); err != nil {
		return fmt.Errorf("[sqlite.Sessions.Remove] delete: %w", err)
	}
	return nil
}

func (r *SessionRepo) ListExpired(ctx context.Context, filter sessions.CleanupFilter) ([]*sessions.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE `+sessionExpiry+` <= ? AND (? = '' OR tenant_id = ?) AND (? = '' OR user_id = ?)
		ORDER BY `+sessionExpiry+`, id LIMIT ? OFFSET ?`,
		toMillis(filter.Before), filter.TenantID, filter.TenantID, filter.UserID, filter.UserID, limitOrAll(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("[sqlite.Sessions.ListExpired] select: %w", err)
	}
	return collectSessions(rows)
}

func (r *SessionRepo) HasActiveForLoginSession(ctx context.Context, tenantID, loginSessionID string, now time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions
		WHERE tenant_id = ? AND login_session_id = ? AND revoked_at IS NULL AND `+sessionExpiry+` > ?`,
		tenantID, loginSessionID, toMillis(now)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("[sqlite.Sessions.HasActiveForLoginSession] select: %w", err)
	}
	return n > 0, nil
}

func (r *SessionRepo) ListForUser(ctx context.Context, tenantID, userID string) ([]*sessions.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE tenant_id = ? AND user_id = ? ORDER BY created_at`, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("[sqlite.Sessions.ListForUser] select: %w", err)
	}
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]*sessions.Session, error) {
	defer rows.Close()
	list := make([]*sessions.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func marshalSession(s *sessions.Session) (string, string, error) {
	clients, err := json.Marshal(s.Clients)
	if err != nil {
		return "", "", fmt.Errorf("marshal clients: %w", err)
	}
	device, err := json.Marshal(s.Device)
	if err != nil {
		return "", "", fmt.Errorf("marshal device: %w", err)
	}
	return string(clients), string(device), nil
}

func scanSession(row rowScanner) (*sessions.Session, error) {
	var (
		s                                   sessions.Session
		clients, device                     string
		createdAt, updatedAt, authAt, expAt int64
		idleAt                              int64
		usedAt, revokedAt                   sql.NullInt64
	)
	if err := row.Scan(&s.TenantID, &s.ID, &s.UserID, &s.LoginSessionID, &clients, &device,
		&createdAt, &updatedAt, &authAt, &expAt, &idleAt, &usedAt, &revokedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(clients), &s.Clients); err != nil {
		return nil, fmt.Errorf("unmarshal clients: %w", err)
	}
	if err := json.Unmarshal([]byte(device), &s.Device); err != nil {
		return nil, fmt.Errorf("unmarshal device: %w", err)
	}
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	s.AuthenticatedAt = fromMillis(authAt)
	s.ExpiresAt = fromMillis(expAt)
	s.IdleExpiresAt = fromMillis(idleAt)
	s.UsedAt = fromNullMillis(usedAt)
	s.RevokedAt = fromNullMillis(revokedAt)
	return &s, nil
}
