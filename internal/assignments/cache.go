package assignments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoleCache keeps a principal's active role set in Redis. It is strictly
// best-effort: every failure degrades to a repository read.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRoleCache constructs a RoleCache.
func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	return &RoleCache{client: client, ttl: ttl}
}

func roleCacheKey(principalID int64) string {
	return fmt.Sprintf("authz:roles:%d", principalID)
}

// Get returns the cached role set and whether it was present.
func (c *RoleCache) Get(ctx context.Context, principalID int64) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, roleCacheKey(principalID)).Bytes()
	if err != nil {
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, false
	}
	return names, true
}

// Set stores the role set with the configured TTL.
func (c *RoleCache) Set(ctx context.Context, principalID int64, names []string) {
	if c == nil || c.client == nil {
		return
	}
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, roleCacheKey(principalID), data, c.ttl).Err()
}

// Invalidate drops the cached role set after assign/revoke.
func (c *RoleCache) Invalidate(ctx context.Context, principalID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, roleCacheKey(principalID)).Err()
}
