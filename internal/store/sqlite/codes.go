package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-engine/codes"
)

var _ codes.Repo = (*CodeRepo)(nil)

type CodeRepo struct {
	db  *sql.DB
	now func() time.Time
}

const codeColumns = `tenant_id, code_type, code_id, login_id, connection_id, user_id, code_verifier,
	code_challenge, code_challenge_method, redirect_uri, nonce, created_at, expires_at`

// Create inserts the code. An expired row with the same key is overwritten; a live one
// leaves the insert without effect and reports ErrCodeExists.
func (r *CodeRepo) Create(ctx context.Context, c *codes.Code) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO codes (`+codeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, code_type, code_id) DO UPDATE SET
			login_id = excluded.login_id, connection_id = excluded.connection_id, user_id = excluded.user_id,
			code_verifier = excluded.code_verifier, code_challenge = excluded.code_challenge,
			code_challenge_method = excluded.code_challenge_method, redirect_uri = excluded.redirect_uri,
			nonce = excluded.nonce, created_at = excluded.created_at, expires_at = excluded.expires_at
		WHERE codes.expires_at <= ?`,
		c.TenantID, string(c.CodeType), c.CodeID, c.LoginID, c.ConnectionID, c.UserID, c.CodeVerifier,
		c.CodeChallenge, c.CodeChallengeMethod, c.RedirectURI, c.Nonce, toMillis(c.CreatedAt), toMillis(c.ExpiresAt),
		toMillis(r.now()))
	if err != nil {
		return fmt.Errorf("[sqlite.Codes.Create] insert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return codes.ErrCodeExists
	}
	return nil
}

func (r *CodeRepo) Get(ctx context.Context, tenantID, codeID string, codeType codes.CodeType) (*codes.Code, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+codeColumns+` FROM codes
		WHERE tenant_id = ? AND code_type = ? AND code_id = ? AND expires_at > ?`,
		tenantID, string(codeType), codeID, toMillis(r.now()))
	var (
		c                  codes.Code
		typ                string
		createdAt, expires int64
	)
	err := row.Scan(&c.TenantID, &typ, &c.CodeID, &c.LoginID, &c.ConnectionID, &c.UserID, &c.CodeVerifier,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.RedirectURI, &c.Nonce, &createdAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, codes.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[sqlite.Codes.Get] select: %w", err)
	}
	c.CodeType = codes.CodeType(typ)
	c.CreatedAt = fromMillis(createdAt)
	c.ExpiresAt = fromMillis(expires)
	return &c, nil
}

// Remove deletes the code; the affected row count decides concurrent redemptions.
func (r *CodeRepo) Remove(ctx context.Context, tenantID, codeID string, codeType codes.CodeType) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM codes WHERE tenant_id = ? AND code_type = ? AND code_id = ?`,
		tenantID, string(codeType), codeID)
	if err != nil {
		return fmt.Errorf("[sqlite.Codes.Remove] delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return codes.ErrCodeNotFound
	}
	return nil
}

func (r *CodeRepo) RemoveExpired(ctx context.Context, filter codes.CleanupFilter) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM codes WHERE rowid IN (
		SELECT rowid FROM codes WHERE expires_at <= ? AND (? = '' OR tenant_id = ?) AND (? = '' OR user_id = ?)
		ORDER BY expires_at LIMIT ?)`,
		toMillis(filter.Before), filter.TenantID, filter.TenantID, filter.UserID, filter.UserID, limitOrAll(filter.Limit))
	if err != nil {
		return 0, fmt.Errorf("[sqlite.Codes.RemoveExpired] delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("[sqlite.Codes.RemoveExpired] rows affected: %w", err)
	}
	return int(n), nil
}
