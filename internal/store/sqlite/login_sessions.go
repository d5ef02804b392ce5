package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-engine/loginsessions"
)

var _ loginsessions.Repo = (*LoginSessionRepo)(nil)

type LoginSessionRepo struct {
	db  *sql.DB
	now func() time.Time
}

const loginSessionColumns = `tenant_id, id, session_id, state, auth_params, state_data, csrf_token,
	auth_connection, auth_strategy, ip, user_agent, created_at, updated_at, expires_at`

func (r *LoginSessionRepo) Create(ctx context.Context, ls *loginsessions.LoginSession) error {
	params, data, err := marshalLoginSession(ls)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO login_sessions (`+loginSessionColumns+`, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ls.TenantID, ls.ID, ls.SessionID, string(ls.State), params, data, ls.CSRFToken,
		ls.AuthConnection, ls.AuthStrategy, ls.IP, ls.UserAgent,
		toMillis(ls.CreatedAt), toMillis(ls.UpdatedAt), toMillis(ls.ExpiresAt), ls.StateData.UserID)
	if err != nil {
		return fmt.Errorf("[sqlite.LoginSessions.Create] insert: %w", err)
	}
	return nil
}

func (r *LoginSessionRepo) Get(ctx context.Context, tenantID, id string) (*loginsessions.LoginSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+loginSessionColumns+` FROM login_sessions
		WHERE tenant_id = ? AND id = ? AND expires_at > ?`, tenantID, id, toMillis(r.now()))
	ls, err := scanLoginSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, loginsessions.ErrLoginSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlite.LoginSessions.Get] select: %w", err)
	}
	return ls, nil
}

func (r *LoginSessionRepo) Update(ctx context.Context, ls *loginsessions.LoginSession) error {
	params, data, err := marshalLoginSession(ls)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE login_sessions SET session_id = ?, state = ?, auth_params = ?,
		state_data = ?, csrf_token = ?, auth_connection = ?, auth_strategy = ?, ip = ?, user_agent = ?,
		updated_at = ?, user_id = ?
		WHERE tenant_id = ? AND id = ? AND expires_at > ?`,
		ls.SessionID, string(ls.State), params, data, ls.CSRFToken, ls.AuthConnection, ls.AuthStrategy,
		ls.IP, ls.UserAgent, toMillis(ls.UpdatedAt), ls.StateData.UserID,
		ls.TenantID, ls.ID, toMillis(r.now()))
	if err != nil {
		return fmt.Errorf("[sqlite.LoginSessions.Update] update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return loginsessions.ErrLoginSessionNotFound
	}
	return nil
}

func (r *LoginSessionRepo) Remove(ctx context.Context, tenantID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM login_sessions WHERE tenant_id = ? AND id = ?`, tenantID, id); err != nil {
		return fmt.Errorf("[sqlite.LoginSessions.Remove] delete: %w", err)
	}
	return nil
}

func (r *LoginSessionRepo) ListExpired(ctx context.Context, filter loginsessions.CleanupFilter) ([]*loginsessions.LoginSession, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loginSessionColumns+` FROM login_sessions
		WHERE expires_at <= ? AND (? = '' OR tenant_id = ?) AND (? = '' OR user_id = ?)
		ORDER BY expires_at, id LIMIT ? OFFSET ?`,
		toMillis(filter.Before), filter.TenantID, filter.TenantID, filter.UserID, filter.UserID, limitOrAll(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("[sqlite.LoginSessions.ListExpired] select: %w", err)
	}
	defer rows.Close()

	list := make([]*loginsessions.LoginSession, 0)
	for rows.Next() {
		ls, err := scanLoginSession(rows)
		if err != nil {
			return nil, fmt.Errorf("[sqlite.LoginSessions.ListExpired] scan: %w", err)
		}
		list = append(list, ls)
	}
	return list, rows.Err()
}

func marshalLoginSession(ls *loginsessions.LoginSession) (string, string, error) {
	params, err := json.Marshal(ls.AuthParams)
	if err != nil {
		return "", "", fmt.Errorf("marshal auth params: %w", err)
	}
	data, err := json.Marshal(ls.StateData)
	if err != nil {
		return "", "", fmt.Errorf("marshal state data: %w", err)
	}
	return string(params), string(data), nil
}

func scanLoginSession(row rowScanner) (*loginsessions.LoginSession, error) {
	var (
		ls                             loginsessions.LoginSession
		state, params, data            string
		createdAt, updatedAt, expireAt int64
	)
	if err := row.Scan(&ls.TenantID, &ls.ID, &ls.SessionID, &state, &params, &data, &ls.CSRFToken,
		&ls.AuthConnection, &ls.AuthStrategy, &ls.IP, &ls.UserAgent, &createdAt, &updatedAt, &expireAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &ls.AuthParams); err != nil {
		return nil, fmt.Errorf("unmarshal auth params: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &ls.StateData); err != nil {
		return nil, fmt.Errorf("unmarshal state data: %w", err)
	}
	ls.State = loginsessions.State(state)
	ls.CreatedAt = fromMillis(createdAt)
	ls.UpdatedAt = fromMillis(updatedAt)
	ls.ExpiresAt = fromMillis(expireAt)
	return &ls, nil
}
