// Package redisstate is the single shared-state backend for every gate that
// must be authoritative across crawler instances: the circuit breaker's
// failure counter and sticky flag, the rate limiter's blacklist and 429
// back-off keys, and the slow-render hand-off queue. Per the concurrency
// model, no gate is permitted a local cache of this state — every read goes
// to Redis so peer crawlers observe the same state within one network hop.
package redisstate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the minimal surface every gate needs from Redis. It is an
// interface, not a concrete client, so gates can be tested against an
// in-memory fake without a live Redis instance — the same seam style as
// the robots cache.Cache port.
type Store interface {
	// IncrWithTTLOnFirst atomically increments key and, only on the
	// increment that takes it from 0 to 1, sets ttl on it. Returns the
	// post-increment value.
	IncrWithTTLOnFirst(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// SetSticky sets key to value with no expiry.
	SetSticky(ctx context.Context, key, value string) error

	// Get returns the value at key and whether it existed.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetTTL sets key to value with the given expiry.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the given keys unconditionally.
	Delete(ctx context.Context, keys ...string) error

	// RPush appends value to the tail of the list at key.
	RPush(ctx context.Context, key, value string) error
}

// incrWithTTLScript increments a counter and, the first time it transitions
// away from zero, attaches a TTL to it in the same round trip — mirroring
// the idempotent-commit Lua pattern used elsewhere in the stack for
// compound Redis operations that must not race against a concurrent reader.
const incrWithTTLScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

// GoRedisStore is the production Store backed by a single shared
// *redis.Client, constructed once by the CLI entrypoint and threaded
// explicitly through every gate rather than held as a package-level global.
type GoRedisStore struct {
	client *redis.Client
}

// NewGoRedisStore wraps an existing client. The caller owns the client's
// lifecycle (construction, auth, close).
func NewGoRedisStore(client *redis.Client) *GoRedisStore {
	return &GoRedisStore{client: client}
}

func (s *GoRedisStore) IncrWithTTLOnFirst(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	res, err := s.client.Eval(ctx, incrWithTTLScript, []string{key}, int(ttl.Seconds())).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	default:
		return 0, nil
	}
}

func (s *GoRedisStore) SetSticky(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *GoRedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *GoRedisStore) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *GoRedisStore) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *GoRedisStore) RPush(ctx context.Context, key, value string) error {
	return s.client.RPush(ctx, key, value).Err()
}
