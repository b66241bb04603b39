package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisLocker_Exclusive(t *testing.T) {
	_, client := setupRedis(t)
	locker := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	first, ok, err := locker.Acquire(ctx, "user-1")
	if err != nil || !ok {
		t.Fatalf("Acquire() = %v, %v; want lock", ok, err)
	}

	_, ok, err = locker.Acquire(ctx, "user-1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if ok {
		t.Fatal("second Acquire() for the same key should fail while held")
	}

	// other users are independent
	if _, ok, _ := locker.Acquire(ctx, "user-2"); !ok {
		t.Error("Acquire() for another key should succeed")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, ok, _ := locker.Acquire(ctx, "user-1"); !ok {
		t.Error("Acquire() after Release() should succeed")
	}
}

func TestRedisLocker_TTLExpiry(t *testing.T) {
	mr, client := setupRedis(t)
	locker := NewRedisLocker(client, 30*time.Second)
	ctx := context.Background()

	stale, ok, _ := locker.Acquire(ctx, "user-1")
	if !ok {
		t.Fatal("Acquire() failed")
	}

	mr.FastForward(31 * time.Second)

	fresh, ok, _ := locker.Acquire(ctx, "user-1")
	if !ok {
		t.Fatal("Acquire() after TTL expiry should succeed")
	}

	// the expired holder must not release the new holder's lock
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, ok, _ := locker.Acquire(ctx, "user-1"); ok {
		t.Error("stale Release() freed a lock it no longer owned")
	}

	fresh.Release(ctx)
}

func TestNoop(t *testing.T) {
	var locker Locker = Noop{}
	l, ok, err := locker.Acquire(context.Background(), "any")
	if err != nil || !ok {
		t.Fatalf("Noop.Acquire() = %v, %v", ok, err)
	}
	if err := l.Release(context.Background()); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}
