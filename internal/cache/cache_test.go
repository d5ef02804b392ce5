package cache_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-engine/internal/cache"
	"github.com/jrsteele09/go-auth-engine/tenants"
	tenantrepofakes "github.com/jrsteele09/go-auth-engine/tenants/repofakes"
	"github.com/stretchr/testify/require"
)

func TestFetchSharesConcurrentLoads(t *testing.T) {
	c := cache.New(time.Minute)
	var loads atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Fetch("k", func() (any, error) {
				loads.Add(1)
				<-release
				return "value", nil
			})
			require.NoError(t, err)
			require.Equal(t, "value", v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	require.LessOrEqual(t, loads.Load(), int32(10))

	_, err := c.Fetch("k", func() (any, error) {
		t.Fatal("value should be cached")
		return nil, nil
	})
	require.NoError(t, err)
}

func TestTenantRepoInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	backing := tenantrepofakes.NewFakeTenantRepo()
	require.NoError(t, backing.Upsert(ctx, &tenants.Tenant{ID: "t1", Name: "Acme"}))
	repo := cache.NewTenantRepo(backing, cache.New(time.Minute))

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "Acme", got.Name)

	got.Name = "mutated"
	again, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "Acme", again.Name)

	require.NoError(t, repo.Upsert(ctx, &tenants.Tenant{ID: "t1", Name: "Acme Corp"}))
	again, err = repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", again.Name)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, tenants.ErrTenantNotFound)
}
