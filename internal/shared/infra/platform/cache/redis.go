package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	scanBatch = 100
	// fallbackTTL evita claves sin caducidad si no se configura un TTL por defecto.
	fallbackTTL = 300 * time.Second
)

type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache: defaultTTL se aplica cuando Set recibe ttlSecs <= 0, igual que en InMemoryCache.
func NewRedisCache(client *redis.Client, defaultTTL time.Duration) *RedisCache {
	if defaultTTL <= 0 {
		defaultTTL = fallbackTTL
	}
	return &RedisCache{client: client, defaultTTL: defaultTTL}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // cache miss
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	ttl := c.defaultTTL
	if ttlSecs > 0 {
		ttl = time.Duration(ttlSecs) * time.Second
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeletePrefix recorre con SCAN en vez de KEYS para no bloquear Redis con namespaces grandes.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
