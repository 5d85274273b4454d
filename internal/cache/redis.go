package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ Store = (*RedisCache)(nil)

// DefaultRedisPrefix namespaces cache keys in a shared Redis database.
const DefaultRedisPrefix = "golyrics:http:"

// RedisCache is a Store backed by Redis. Metadata is kept as JSON and the
// body as raw bytes under two keys sharing the identity key. Entries expire
// after TTL when it is positive.
type RedisCache struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// NewRedisCache connects to the Redis server at rawURL
// (redis://[user:pass@]host:port/db or rediss:// for TLS).
func NewRedisCache(rawURL string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{Client: redis.NewClient(opt), Prefix: DefaultRedisPrefix, TTL: ttl}, nil
}

func (c *RedisCache) metaKey(key string) string { return c.Prefix + key + ":meta" }
func (c *RedisCache) bodyKey(key string) string { return c.Prefix + key + ":body" }

// Ping verifies the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// LoadMeta returns entry metadata if present.
func (c *RedisCache) LoadMeta(ctx context.Context, key string) (*HTTPEntry, error) {
	b, err := c.Client.Get(ctx, c.metaKey(key)).Bytes()
	if err != nil {
		return nil, redisMissOr(err)
	}
	var e HTTPEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// LoadBody returns the cached body if present.
func (c *RedisCache) LoadBody(ctx context.Context, key string) ([]byte, error) {
	b, err := c.Client.Get(ctx, c.bodyKey(key)).Bytes()
	if err != nil {
		return nil, redisMissOr(err)
	}
	return b, nil
}

// Save stores body and metadata in one transaction.
func (c *RedisCache) Save(ctx context.Context, key string, meta HTTPEntry, body []byte) error {
	if meta.SavedAt.IsZero() {
		meta.SavedAt = time.Now().UTC()
	}
	data, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	ttl := c.TTL
	if ttl < 0 {
		ttl = 0
	}
	_, err = c.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, c.bodyKey(key), body, ttl)
		p.Set(ctx, c.metaKey(key), data, ttl)
		return nil
	})
	return err
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.Client.Close()
}

func redisMissOr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	return err
}
