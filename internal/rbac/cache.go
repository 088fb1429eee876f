package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "rbac:version"

// Cache wraps Redis based caching of effective permission sets with
// versioning controls. Every grant or revoke bumps the version before the
// mutating call returns, so a subsequent resolver call never observes stale
// state. A nil client disables caching entirely.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates every cached set by advancing the version. Entries written
// under older versions become unreachable and expire through their TTL.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// FetchEffective loads a user's cached effective permission set or populates
// it using the loader. Concurrent misses for the same key collapse into a
// single loader call.
func (c *Cache) FetchEffective(ctx context.Context, userID int64, loader func(context.Context) ([]Permission, error)) ([]Permission, bool, error) {
	if c == nil || c.client == nil {
		perms, err := loader(ctx)
		return perms, false, err
	}
	ver, err := c.Version(ctx)
	if err != nil {
		// Cache trouble must not break authorization reads.
		perms, lerr := loader(ctx)
		return perms, false, lerr
	}
	key := fmt.Sprintf("rbac:eff:%d:%d", ver, userID)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var perms []Permission
		if jerr := json.Unmarshal(payload, &perms); jerr == nil {
			return perms, true, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		perms, lerr := loader(ctx)
		return perms, false, lerr
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		perms, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(perms)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return perms, nil
	})
	if err != nil {
		return nil, false, err
	}
	perms, _ := value.([]Permission)
	return perms, false, nil
}
