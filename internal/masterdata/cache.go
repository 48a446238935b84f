package masterdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MaterialCache is a read-through Redis cache for material lookups. Cache
// failures degrade to a miss; the database stays the source of truth.
type MaterialCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMaterialCache constructs the cache. A zero ttl defaults to one minute;
// stock figures go stale quickly, so the window stays short.
func NewMaterialCache(client *redis.Client, ttl time.Duration) *MaterialCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MaterialCache{client: client, ttl: ttl}
}

func materialKey(id int64) string {
	return fmt.Sprintf("masterdata:material:%d", id)
}

// Get returns the cached material, reporting a miss on absence or error.
func (c *MaterialCache) Get(ctx context.Context, id int64) (Material, bool) {
	if c == nil || c.client == nil {
		return Material{}, false
	}
	raw, err := c.client.Get(ctx, materialKey(id)).Bytes()
	if err != nil {
		return Material{}, false
	}
	var m Material
	if err := json.Unmarshal(raw, &m); err != nil {
		return Material{}, false
	}
	return m, true
}

// Set stores the material, ignoring cache errors.
func (c *MaterialCache) Set(ctx context.Context, m Material) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, materialKey(m.ID), raw, c.ttl).Err()
}

// Invalidate drops the cached entry after a write.
func (c *MaterialCache) Invalidate(ctx context.Context, id int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, materialKey(id)).Err()
}
