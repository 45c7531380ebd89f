package cyclelock

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey = "novawatch:cycle:lock"

	releaseTimeout = 3 * time.Second
)

// Locker guards a polling cycle. TryLock never blocks; ok is false when
// another holder owns the lock. release must be called exactly once when ok.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// Local is an in-process guard.
type Local struct {
	held atomic.Bool
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryLock(_ context.Context) (func(), bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	return func() { l.held.Store(false) }, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Redis shares the guard between replicas. The TTL bounds how long a crashed
// holder can keep others out.
type Redis struct {
	rdb    *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(rdb *redis.Client, key string, ttl time.Duration, logger *slog.Logger) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{
		rdb:    rdb,
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *Redis) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("cycle lock setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, r.rdb, []string{r.key}, token).Err(); err != nil {
			r.logger.Warn("release cycle lock failed", slog.String("error", err.Error()))
		}
	}
	return release, true, nil
}

// Chain acquires every locker in order and releases them in reverse.
type Chain []Locker

func (c Chain) TryLock(ctx context.Context) (func(), bool, error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, l := range c {
		release, ok, err := l.TryLock(ctx)
		if err != nil || !ok {
			releaseAll()
			return nil, false, err
		}
		releases = append(releases, release)
	}
	return releaseAll, true, nil
}
