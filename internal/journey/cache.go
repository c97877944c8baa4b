package journey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is a cached derivation. It is advisory only: the staleness
// TTL bounds how long a stale route may be served, and every mutation
// to the underlying user invalidates it.
type Snapshot struct {
	Classification Classification `json:"classification"`
	Route          Route          `json:"route"`
	DerivedAt      time.Time      `json:"derivedAt"`
}

// Cache holds journey snapshots in redis. A nil *Cache is valid and
// behaves as a permanent miss, so callers need no nil checks.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, userID string) (Snapshot, bool) {
	if c == nil || c.client == nil || userID == "" {
		return Snapshot{}, false
	}

	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		return Snapshot{}, false
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

func (c *Cache) Put(ctx context.Context, userID string, snap Snapshot) error {
	if c == nil || c.client == nil || userID == "" {
		return nil
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal journey snapshot: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache journey snapshot: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.client == nil || userID == "" {
		return nil
	}
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("invalidate journey snapshot: %w", err)
	}
	return nil
}

func cacheKey(userID string) string {
	return "journey:" + userID
}
