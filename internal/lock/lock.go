// Package lock guards a user's dispatch against overlapping passes.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a held lock
type Lock interface {
	// Release releases the lock if we still own it
	Release(ctx context.Context) error
}

// Locker hands out per-key locks
type Locker interface {
	// Acquire tries to take the lock for key without blocking.
	// ok is false when another holder owns it.
	Acquire(ctx context.Context, key string) (l Lock, ok bool, err error)
}

// Noop is used when no shared lock backend is configured. Every acquire
// succeeds; overlapping passes are then caught only by the optimistic
// update of the automation config.
type Noop struct{}

func (Noop) Acquire(ctx context.Context, key string) (Lock, bool, error) {
	return noopLock{}, true, nil
}

type noopLock struct{}

func (noopLock) Release(ctx context.Context) error { return nil }

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker uses SET NX with a TTL and an ownership token
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisLocker creates a locker; ttl bounds how long a crashed holder blocks others
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, prefix: "ofertabot:lock:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Lock, bool, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, false, fmt.Errorf("generate lock token: %w", err)
	}

	rl := &redisLock{client: l.client, key: l.prefix + key, value: hex.EncodeToString(b)}

	ok, err := l.client.SetNX(ctx, rl.key, rl.value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", rl.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return rl, true, nil
}

type redisLock struct {
	client *redis.Client
	key    string
	value  string
}

func (l *redisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}
