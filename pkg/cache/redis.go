package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LLM-Dev-Ops/policy-engine/pkg/contracts"
)

// RedisStore is an optional multi-process decision cache backend. Nothing
// in this module selects it from configuration: the CLI and the agents use
// the in-memory Store whatever the cache backend setting. Generation
// invalidation is
// implemented by namespacing every key under a generation value also held
// in Redis, the same approach the teacher's idempotency middleware uses
// for TTL-scoped result caching, adapted with a generation prefix instead
// of a bare key since Redis has no built-in "invalidate everything at
// once" primitive short of FLUSHDB.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore returns a RedisStore using client, namespacing every key
// under prefix (e.g. "policyengine:decisions").
func NewRedisStore(client *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, prefix: prefix}
}

func (r *RedisStore) generationKey() string {
	return r.prefix + ":generation"
}

func (r *RedisStore) currentGeneration(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, r.generationKey()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: read generation: %w", err)
	}
	return gen, nil
}

// Invalidate increments the shared generation counter so every key cached
// against an earlier generation stops resolving.
func (r *RedisStore) Invalidate(ctx context.Context) error {
	if err := r.client.Incr(ctx, r.generationKey()).Err(); err != nil {
		return fmt.Errorf("cache: bump generation: %w", err)
	}
	return nil
}

func (r *RedisStore) namespacedKey(ctx context.Context, key string) (string, error) {
	gen, err := r.currentGeneration(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%s", r.prefix, gen, key), nil
}

// Get returns the cached event for key, or (nil, false) on a miss or TTL
// expiry (TTL is enforced by Redis itself via SetEX).
func (r *RedisStore) Get(ctx context.Context, key string) (*contracts.DecisionEvent, bool, error) {
	nsKey, err := r.namespacedKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	raw, err := r.client.Get(ctx, nsKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}
	var event contracts.DecisionEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, false, fmt.Errorf("cache: decode cached event: %w", err)
	}
	return &event, true, nil
}

// Put stores event under key with the store's TTL.
func (r *RedisStore) Put(ctx context.Context, key string, event *contracts.DecisionEvent) error {
	nsKey, err := r.namespacedKey(ctx, key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("cache: encode event: %w", err)
	}
	if err := r.client.Set(ctx, nsKey, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}
