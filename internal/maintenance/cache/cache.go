// Package cache provides the read-through cache used for board and registry
// queries: fetch with a cache key, invalidate by key prefix.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Key prefixes invalidated by writes.
const (
	RequestsPrefix  = "maintenance-requests"
	EquipmentPrefix = "equipment"
	RevokedPrefix   = "revoked-token"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Store is the minimal key/value contract the services depend on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, prefixes ...string) error
}

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return value, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Invalidate deletes every key under the given prefixes.
func (r *RedisStore) Invalidate(ctx context.Context, prefixes ...string) error {
	for _, prefix := range prefixes {
		iter := r.client.Scan(ctx, 0, prefix+":*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) == 0 {
			continue
		}
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Connect returns a RedisStore for addr, failing when the server does not
// answer a ping. An empty addr selects a process-local MemoryStore, which
// keeps sign-out revocations visible to this process only. The returned func
// releases the connection.
func Connect(ctx context.Context, addr, password string, logger *zap.Logger) (Store, func(), error) {
	if addr == "" {
		logger.Warn("Redis address not set, using in-memory cache; revocations stay local to this process")
		return NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis at %s unavailable: %w", addr, err)
	}

	store := NewRedisStore(client)
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close Redis client", zap.Error(err))
		}
	}, nil
}

// Key joins a prefix and parts with ':'.
func Key(prefix string, parts ...string) string {
	key := prefix
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Fetch returns the cached value for key, or calls load and caches its result.
// Cache failures never fail the read; they are logged and load is used.
func Fetch[T any](ctx context.Context, store Store, logger *zap.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if store == nil {
		return load(ctx)
	}

	if raw, err := store.Get(ctx, key); err == nil {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	} else if !errors.Is(err, ErrMiss) {
		logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return value, nil
	}
	if err := store.Set(ctx, key, raw, ttl); err != nil {
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// Invalidate drops the prefixes and logs instead of failing the caller's write.
func Invalidate(ctx context.Context, store Store, logger *zap.Logger, prefixes ...string) {
	if store == nil {
		return
	}
	if err := store.Invalidate(ctx, prefixes...); err != nil {
		logger.Warn("Cache invalidation failed", zap.Strings("prefixes", prefixes), zap.Error(err))
	}
}
