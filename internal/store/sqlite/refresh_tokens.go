package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-engine/token/refresh"
)

var _ refresh.Repo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct {
	db *sql.DB
}

const refreshTokenColumns = `tenant_id, id, client_id, user_id, session_id, scope, audience, created_at,
	expires_at, idle_expires_at, used_at, revoked_at`

const refreshTokenExpiry = `MIN(expires_at, CASE WHEN idle_expires_at > 0 THEN idle_expires_at ELSE expires_at END)`

func (r *RefreshTokenRepo) Create(ctx context.Context, rt *refresh.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.TenantID, rt.ID, rt.ClientID, rt.UserID, rt.SessionID, rt.Scope, rt.Audience,
		toMillis(rt.CreatedAt), toMillis(rt.ExpiresAt), toMillis(rt.IdleExpiresAt),
		toNullMillis(rt.UsedAt), toNullMillis(rt.RevokedAt))
	if err != nil {
		return fmt.Errorf("[sqlite.RefreshTokens.Create] insert: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) Get(ctx context.Context, tenantID, id string) (*refresh.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE tenant_id = ? AND id = ?`, tenantID, id)
	rt, err := scanRefreshToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refresh.ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlite.RefreshTokens.Get] select: %w", err)
	}
	return rt, nil
}

func (r *RefreshTokenRepo) Update(ctx context.Context, rt *refresh.RefreshToken) error {
	res, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET scope = ?, audience = ?, expires_at = ?,
		idle_expires_at = ?, used_at = ?, revoked_at = ? WHERE tenant_id = ? AND id = ?`,
		rt.Scope, rt.Audience, toMillis(rt.ExpiresAt), toMillis(rt.IdleExpiresAt),
		toNullMillis(rt.UsedAt), toNullMillis(rt.RevokedAt), rt.TenantID, rt.ID)
	if err != nil {
		return fmt.Errorf("[sqlite.RefreshTokens.Update] update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return refresh.ErrRefreshTokenNotFound
	}
	return nil
}

func (r *RefreshTokenRepo) Remove(ctx context.Context, tenantID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE tenant_id = ? AND id = ?`, tenantID, id); err != nil {
		return fmt.Errorf("[sqlite.RefreshTokens.Remove] delete: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) ListExpired(ctx context.Context, filter refresh.CleanupFilter) ([]*refresh.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens
		WHERE `+refreshTokenExpiry+` <= ? AND (? = '' OR tenant_id = ?) AND (? = '' OR user_id = ?)
		ORDER BY `+refreshTokenExpiry+`, id LIMIT ? OFFSET ?`,
		toMillis(filter.Before), filter.TenantID, filter.TenantID, filter.UserID, filter.UserID, limitOrAll(filter.Limit), filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("[sqlite.RefreshTokens.ListExpired] select: %w", err)
	}
	defer rows.Close()

	list := make([]*refresh.RefreshToken, 0)
	for rows.Next() {
		rt, err := scanRefreshToken(rows)
		if err != nil {
			return nil, fmt.Errorf("[sqlite.RefreshTokens.ListExpired] scan: %w", err)
		}
		list = append(list, rt)
	}
	return list, rows.Err()
}

func (r *RefreshTokenRepo) HasActiveForSession(ctx context.Context, tenantID, sessionID string, now time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM refresh_tokens
		WHERE tenant_id = ? AND session_id = ? AND revoked_at IS NULL AND `+refreshTokenExpiry+` > ?`,
		tenantID, sessionID, toMillis(now)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("[sqlite.RefreshTokens.HasActiveForSession] select: %w", err)
	}
	return n > 0, nil
}

func scanRefreshToken(row rowScanner) (*refresh.RefreshToken, error) {
	var (
		rt                       refresh.RefreshToken
		createdAt, expAt, idleAt int64
		usedAt, revokedAt        sql.NullInt64
	)
	if err := row.Scan(&rt.TenantID, &rt.ID, &rt.ClientID, &rt.UserID, &rt.SessionID, &rt.Scope, &rt.Audience,
		&createdAt, &expAt, &idleAt, &usedAt, &revokedAt); err != nil {
		return nil, err
	}
	rt.CreatedAt = fromMillis(createdAt)
	rt.ExpiresAt = fromMillis(expAt)
	rt.IdleExpiresAt = fromMillis(idleAt)
	rt.UsedAt = fromNullMillis(usedAt)
	rt.RevokedAt = fromNullMillis(revokedAt)
	return &rt, nil
}
