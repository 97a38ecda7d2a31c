package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// AudioCache stores serialized synthesis results keyed by request digest.
// The backing store is shared and may be unavailable; both accessors are
// fail-soft so cache outages degrade to recompute, never to request errors.
type AudioCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAudioCache(client *redis.Client, ttl time.Duration) *AudioCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AudioCache{client: client, ttl: ttl}
}

// Get returns the cached value for key, or false when the entry is absent,
// expired, or the backing store is unreachable.
func (c *AudioCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil || key == "" {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.prefixed(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("audio cache read failed", "err", err)
		}
		return nil, false
	}
	return data, true
}

// Set writes an entry with the cache TTL. Failures are logged and swallowed.
func (c *AudioCache) Set(ctx context.Context, key string, value []byte) {
	if c == nil || c.client == nil || key == "" || len(value) == 0 {
		return
	}
	if err := c.client.Set(ctx, c.prefixed(key), value, c.ttl).Err(); err != nil {
		slog.Warn("audio cache write failed", "err", err)
	}
}

// TTL reports the configured entry lifetime.
func (c *AudioCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

func (c *AudioCache) prefixed(key string) string {
	return "audio:" + key
}
