package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend is the distributed side of the lock. Implementations must be safe
// for concurrent use. Every operation is token-guarded except acquisition,
// which mints the ownership.
type Backend interface {
	// SetIfAbsent acquires the scope/key pair for token with the given TTL.
	// Returns false when the lock is already held.
	SetIfAbsent(ctx context.Context, scope, key, token string, ttl time.Duration) (bool, error)
	// Renew extends the TTL of an already-held lock. Returns false when the
	// key no longer exists (TTL expired underneath us).
	Renew(ctx context.Context, scope, key, token string, ttl time.Duration) (bool, error)
	// Release deletes the lock only while it still holds token. Returns
	// false when the key expired or was taken over.
	Release(ctx context.Context, scope, key, token string) (bool, error)
	// Get returns the current holder token, or "" when the lock is free.
	Get(ctx context.Context, scope, key string) (string, error)
}

// releaseScript deletes the lock key only if it still carries our token, so
// a holder whose TTL expired cannot delete a successor's lock.
var releaseScript = redis.NewScript(
	`if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end`,
)

// RedisBackend implements Backend on a single Redis instance.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend creates a lock backend on top of an existing Redis client.
func NewRedisBackend(client *redis.Client, keyPrefix string) *RedisBackend {
	if keyPrefix == "" {
		keyPrefix = "bitrixbot"
	}
	return &RedisBackend{client: client, prefix: keyPrefix}
}

// Key builds the shared lock key for a scope/key pair.
func (b *RedisBackend) Key(scope, key string) string {
	return fmt.Sprintf("%s:%s::%s", b.prefix, scope, key)
}

func (b *RedisBackend) SetIfAbsent(ctx context.Context, scope, key, token string, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, b.Key(scope, key), token, ttl).Result()
}

// Renew uses SET XX PX: the TTL is only extended while the key still exists.
func (b *RedisBackend) Renew(ctx context.Context, scope, key, token string, ttl time.Duration) (bool, error) {
	ok, err := b.client.SetXX(ctx, b.Key(scope, key), token, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (b *RedisBackend) Release(ctx context.Context, scope, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, b.client, []string{b.Key(scope, key)}, token).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *RedisBackend) Get(ctx context.Context, scope, key string) (string, error) {
	token, err := b.client.Get(ctx, b.Key(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return token, err
}

var _ Backend = (*RedisBackend)(nil)
