package quotastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces counter keys.
const DefaultRedisPrefix = "usagegate:"

// incrementBelowScript runs the compare and the increment in one atomic step.
// KEYS[1] counter key; ARGV[1] limit; ARGV[2] expiry unix timestamp.
// Returns {count, incremented}.
var incrementBelowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  return {current, 0}
end
current = redis.call('INCR', KEYS[1])
redis.call('EXPIREAT', KEYS[1], ARGV[2])
return {current, 1}
`)

// RedisBackend stores counters as Redis integers that expire after their bucket.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithRedisPrefix overrides DefaultRedisPrefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(b *RedisBackend) {
		b.prefix = prefix
	}
}

// NewRedisBackend creates a Redis backed counter store.
func NewRedisBackend(client redis.UniversalClient, opts ...RedisOption) *RedisBackend {
	b := &RedisBackend{client: client, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBackend) IncrementBelow(ctx context.Context, key Key, limit int64, expireAt time.Time) (int64, bool, error) {
	res, err := incrementBelowScript.Run(ctx, b.client, []string{b.key(key)}, limit, expireAt.Unix()).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redis increment %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("redis increment %s: unexpected script result %v", key, res)
	}
	return res[0], res[1] == 1, nil
}

func (b *RedisBackend) Get(ctx context.Context, key Key) (int64, error) {
	n, err := b.client.Get(ctx, b.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

func (b *RedisBackend) Delete(ctx context.Context, key Key) error {
	if err := b.client.Del(ctx, b.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) key(k Key) string {
	return b.prefix + k.String()
}
