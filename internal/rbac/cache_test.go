package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheFetchEffective(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) ([]Permission, error) {
		calls++
		return []Permission{{ID: 1, Name: "users.view"}}, nil
	}

	perms, cached, err := cache.FetchEffective(ctx, 1, loader)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, perms, 1)
	assert.Equal(t, 1, calls)

	perms, cached, err = cache.FetchEffective(ctx, 1, loader)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "users.view", perms[0].Name)
	assert.Equal(t, 1, calls, "second fetch must come from cache")
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) ([]Permission, error) {
		calls++
		return []Permission{{ID: 1, Name: "users.view"}}, nil
	}

	_, _, err := cache.FetchEffective(ctx, 1, loader)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))

	_, cached, err := cache.FetchEffective(ctx, 1, loader)
	require.NoError(t, err)
	assert.False(t, cached, "bump must invalidate the cached set")
	assert.Equal(t, 2, calls)
}

func TestCacheDisabledPassesThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) ([]Permission, error) {
		calls++
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		_, cached, err := cache.FetchEffective(ctx, 1, loader)
		require.NoError(t, err)
		assert.False(t, cached)
	}
	assert.Equal(t, 2, calls)
	assert.NoError(t, cache.Bump(ctx))
}

func TestServiceInvalidatesCacheOnGrant(t *testing.T) {
	repo := newMockRepository()
	ident := &stubIdentity{
		principals: map[int64]Principal{1: {ID: 1, Active: true}},
		roles:      map[int64][]int64{1: {10}},
	}
	repo.addRole(10)
	repo.addUser(1, 10)
	cache := newTestCache(t)
	svc := NewService(repo, ident, cache, nil)
	ctx := context.Background()

	perm, err := svc.CreatePermission(ctx, "users.view", "")
	require.NoError(t, err)

	effective, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, effective)

	// The grant must be visible immediately, even though the empty set was
	// cached by the previous read.
	require.NoError(t, svc.GrantToRole(ctx, 10, perm.ID))

	effective, err = svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"users.view"}, names(effective))
}
