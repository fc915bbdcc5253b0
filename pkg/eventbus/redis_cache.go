package eventbus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores events in a capped redis list, newest at the head.
// Event.Data comes back as decoded JSON (maps, slices, float64).
type RedisCache struct {
	redis *redis.Client
	key   string
	size  int64
}

func NewRedisCache(client *redis.Client, prefix string, size int) *RedisCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if prefix == "" {
		prefix = "labx:dataflow"
	}
	return &RedisCache{redis: client, key: prefix + ":events", size: int64(size)}
}

func (c *RedisCache) Put(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	pipe := c.redis.TxPipeline()
	pipe.LPush(ctx, c.key, payload)
	pipe.LTrim(ctx, c.key, 0, c.size-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Recent(ctx context.Context, n int) ([]Event, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n) - 1
	}
	raw, err := c.redis.LRange(ctx, c.key, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var evt Event
		if err := json.Unmarshal([]byte(raw[i]), &evt); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (Event, bool, error) {
	events, err := c.Recent(ctx, 0)
	if err != nil {
		return Event{}, false, err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].CacheKey() == key {
			return events[i], true, nil
		}
	}
	return Event{}, false, nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.redis.Del(ctx, c.key).Err()
}
