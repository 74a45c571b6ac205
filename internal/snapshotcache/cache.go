// Package snapshotcache shares the latest SyncStatus snapshot through Redis
// so verifiers on other processes can consume it without polling peers
// themselves.
package snapshotcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chronocert/internal/hptp"
)

// DefaultKey is the cache key snapshots are published under.
const DefaultKey = "chronocert:sync-status"

// Cache publishes and fetches SyncStatus snapshots. The TTL is a multiple of
// the poll interval so a stalled publisher reads as absent rather than stale.
type Cache struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// New constructs a Cache. TTL should exceed the sync poll interval.
func New(rdb *redis.Client, key string, ttl time.Duration) (*Cache, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{rdb: rdb, key: key, ttl: ttl}, nil
}

// Publish stores the snapshot as JSON with the configured TTL.
func (c *Cache) Publish(ctx context.Context, status hptp.SyncStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal sync status: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("store sync status: %w", err)
	}
	return nil
}

// Fetch loads the latest snapshot. A missing key is an error: callers must
// fail closed, never assume synchronization.
func (c *Cache) Fetch(ctx context.Context) (hptp.SyncStatus, error) {
	payload, err := c.rdb.Get(ctx, c.key).Bytes()
	if err != nil {
		return hptp.SyncStatus{}, fmt.Errorf("fetch sync status: %w", err)
	}
	var status hptp.SyncStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return hptp.SyncStatus{}, fmt.Errorf("decode sync status: %w", err)
	}
	return status, nil
}

var _ hptp.SnapshotSink = (*Cache)(nil)
