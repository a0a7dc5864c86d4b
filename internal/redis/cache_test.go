package redisclient

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// These tests talk to a real Redis and are skipped unless REDIS_TEST_ADDR
// is set.
func testAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	return addr
}

func TestResultCacheRoundTrip(t *testing.T) {
	rdb, err := NewRedisClient(context.Background(), ClientOptions{Addr: testAddr(t)}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	cache := NewResultCache(rdb, "test-"+uuid.NewString())

	if _, ok, err := cache.Load(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := cache.Store(ctx, "day", []byte(`{"slots":[]}`), time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}
	data, ok, err := cache.Load(ctx, "day")
	if err != nil || !ok || string(data) != `{"slots":[]}` {
		t.Fatalf("unexpected load %q ok=%v err=%v", data, ok, err)
	}
}

func TestLockerExcludesConcurrentHolder(t *testing.T) {
	rdb, err := NewRedisClient(context.Background(), ClientOptions{Addr: testAddr(t)}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	locker := NewRedisLocker(rdb, 5*time.Second)
	name := "test-" + uuid.NewString()

	err = locker.WithLock(context.Background(), name, func(ctx context.Context) error {
		inner := locker.WithLock(ctx, name, func(context.Context) error { return nil })
		if !errors.Is(inner, ErrLockNotAcquired) {
			t.Fatalf("expected ErrLockNotAcquired, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer lock: %v", err)
	}
	if err := locker.WithLock(context.Background(), name, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("lock should be free again: %v", err)
	}
}
