package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-engine/codes"
	"github.com/redis/go-redis/v9"
)

var _ codes.Repo = (*Repo)(nil)

// Repo stores codes as JSON values whose Redis TTL matches the code expiry.
type Repo struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

type Option func(*Repo)

func WithPrefix(prefix string) Option {
	return func(r *Repo) {
		r.prefix = prefix
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(r *Repo) {
		r.now = now
	}
}

func New(client *redis.Client, options ...Option) *Repo {
	r := &Repo{
		client: client,
		prefix: "authcode",
		now:    time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *Repo) key(tenantID string, codeType codes.CodeType, codeID string) string {
	return fmt.Sprintf("%s:%s:%s:%s", r.prefix, tenantID, codeType, codeID)
}

func (r *Repo) Create(ctx context.Context, code *codes.Code) error {
	ttl := code.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("[redisrepo.Create] code already expired")
	}
	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("[redisrepo.Create] marshal: %w", err)
	}
	ok, err := r.client.SetNX(ctx, r.key(code.TenantID, code.CodeType, code.CodeID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("[redisrepo.Create] setnx: %w", err)
	}
	if !ok {
		return codes.ErrCodeExists
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, tenantID, codeID string, codeType codes.CodeType) (*codes.Code, error) {
	data, err := r.client.Get(ctx, r.key(tenantID, codeType, codeID)).Bytes()
	if err == redis.Nil {
		return nil, codes.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[redisrepo.Get] get: %w", err)
	}
	var code codes.Code
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, fmt.Errorf("[redisrepo.Get] unmarshal: %w", err)
	}
	if code.Expired(r.now()) {
		return nil, codes.ErrCodeNotFound
	}
	return &code, nil
}

// Remove relies on the DEL reply count: only the caller that actually deleted the key wins.
func (r *Repo) Remove(ctx context.Context, tenantID, codeID string, codeType codes.CodeType) error {
	n, err := r.client.Del(ctx, r.key(tenantID, codeType, codeID)).Result()
	if err != nil {
		return fmt.Errorf("[redisrepo.Remove] del: %w", err)
	}
	if n == 0 {
		return codes.ErrCodeNotFound
	}
	return nil
}

// RemoveExpired is a no-op: Redis evicts codes when their TTL runs out.
func (r *Repo) RemoveExpired(context.Context, codes.CleanupFilter) (int, error) {
	return 0, nil
}
