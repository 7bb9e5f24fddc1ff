package sessionstore

import (
	"context"
	"errors"
	"time"
)

// RedisClient is the subset of Redis operations the store needs.
// It is satisfied by *redis.Client from github.com/redis/go-redis/v9 via a
// thin adapter, keeping the driver out of this module's dependencies.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Get(ctx context.Context, key string) RedisStringCmd
	Del(ctx context.Context, keys ...string) RedisIntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) RedisBoolCmd
	Pipeline() RedisPipeliner
	Close() error
}

// RedisStatusCmd represents a Redis status command result.
type RedisStatusCmd interface {
	Err() error
}

// RedisStringCmd represents a Redis string command result.
type RedisStringCmd interface {
	Bytes() ([]byte, error)
	Err() error
}

// RedisIntCmd represents a Redis int command result.
type RedisIntCmd interface {
	Err() error
}

// RedisBoolCmd represents a Redis bool command result.
type RedisBoolCmd interface {
	Err() error
}

// RedisPipeliner represents a Redis pipeline.
type RedisPipeliner interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) RedisStatusCmd
	Exec(ctx context.Context) ([]interface{}, error)
}

// ErrRedisNil is the missing-key error. It mirrors redis.Nil from go-redis;
// matching is by message because the adapter hides the concrete type.
var ErrRedisNil = errors.New("redis: nil")

// RedisStore is a Redis-backed snapshot store.
// Expiry maps directly onto key TTLs, so there is no cleanup loop.
type RedisStore struct {
	client RedisClient
	prefix string
	closed bool
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	prefix string
}

// WithRedisPrefix sets the key prefix for snapshot keys.
// Default: "urlbind:session:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed snapshot store.
func NewRedisStore(client RedisClient, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{
		prefix: "urlbind:session:",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.prefix,
	}
}

// key returns the Redis key for a session ID.
func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Save stores snapshot bytes with a TTL derived from expiresAt.
func (r *RedisStore) Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already past the resume window.
		return r.Delete(ctx, id)
	}

	return r.client.Set(ctx, r.key(id), data, ttl).Err()
}

// Load retrieves snapshot bytes if the key still exists.
func (r *RedisStore) Load(ctx context.Context, id string) ([]byte, error) {
	if r.closed {
		return nil, ErrStoreClosed{}
	}

	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if err.Error() == ErrRedisNil.Error() {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes a snapshot from Redis.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	return r.client.Del(ctx, r.key(id)).Err()
}

// Touch extends the TTL of a snapshot.
func (r *RedisStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	if r.closed {
		return ErrStoreClosed{}
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, id)
	}

	return r.client.Expire(ctx, r.key(id), ttl).Err()
}

// SaveAll stores multiple snapshots through a pipeline.
// Snapshots already past their expiry are skipped.
func (r *RedisStore) SaveAll(ctx context.Context, snapshots map[string]Record) error {
	if r.closed {
		return ErrStoreClosed{}
	}
	if len(snapshots) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for id, rec := range snapshots {
		ttl := time.Until(rec.ExpiresAt)
		if ttl > 0 {
			pipe.Set(ctx, r.key(id), rec.Data, ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Close marks the store as closed. It does not close the underlying Redis
// client, which may be shared with other components.
func (r *RedisStore) Close() error {
	r.closed = true
	return nil
}

// Prefix returns the current key prefix.
// This is for testing/debugging purposes.
func (r *RedisStore) Prefix() string {
	return r.prefix
}
