package cyclelock

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return s, rdb
}

func TestLocal_TryLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, ok, err := l.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first lock to succeed, ok=%v err=%v", ok, err)
	}

	if _, ok, _ := l.TryLock(ctx); ok {
		t.Fatalf("expected second lock to fail while held")
	}

	release()

	release, ok, err = l.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("expected lock after release, ok=%v err=%v", ok, err)
	}
	release()
}

func TestRedis_TryLock(t *testing.T) {
	ctx := context.Background()
	_, rdb := newMiniRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := NewRedis(rdb, "test:lock", time.Minute, logger)
	b := NewRedis(rdb, "test:lock", time.Minute, logger)

	release, ok, err := a.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("expected first lock to succeed, ok=%v err=%v", ok, err)
	}

	if _, ok, err := b.TryLock(ctx); err != nil || ok {
		t.Fatalf("expected second replica to be locked out, ok=%v err=%v", ok, err)
	}

	release()

	release, ok, err = b.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("expected lock after release, ok=%v err=%v", ok, err)
	}
	release()
}

func TestRedis_ReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	s, rdb := newMiniRedis(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := NewRedis(rdb, "test:lock", time.Second, logger)
	release, ok, err := a.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}

	// the first holder's TTL runs out and another replica takes over
	s.FastForward(2 * time.Second)
	b := NewRedis(rdb, "test:lock", time.Minute, logger)
	if _, ok, err := b.TryLock(ctx); err != nil || !ok {
		t.Fatalf("expected takeover after expiry, ok=%v err=%v", ok, err)
	}

	release()

	if !s.Exists("test:lock") {
		t.Fatalf("stale release must not delete the new holder's lock")
	}
}

func TestChain_ReleasesOnPartialFailure(t *testing.T) {
	ctx := context.Background()
	first := NewLocal()
	second := NewLocal()

	held, _, _ := second.TryLock(ctx)

	if _, ok, _ := (Chain{first, second}).TryLock(ctx); ok {
		t.Fatalf("expected chain to fail while second is held")
	}
	if _, ok, _ := first.TryLock(ctx); !ok {
		t.Fatalf("expected first lock to be released after chain failure")
	}
	held()
}
