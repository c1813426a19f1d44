package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pelorus-marine/pelorus/internal/access"
)

const snapshotKey = "pelorus:catalog:snapshot"

// SnapshotCache keeps a short-lived copy of the permission catalog in
// Redis. The catalog is read on every authorization check, so even a few
// seconds of caching removes most of the load; every catalog write
// invalidates the key.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache constructs a cache with the given entry lifetime.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns the cached catalog entries, reporting a miss on any
// error. Cache failures degrade to a database read, never to a request
// failure.
func (c *SnapshotCache) Get(ctx context.Context) ([]access.Permission, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		return nil, false
	}
	var perms []access.Permission
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

// Set stores the catalog entries.
func (c *SnapshotCache) Set(ctx context.Context, perms []access.Permission) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, snapshotKey, data, c.ttl).Err()
}

// Invalidate drops the snapshot after a catalog mutation.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, snapshotKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
