// Package lease guards periodic jobs so that only one console instance runs
// them at a time.
package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived named leases. ok is false when another holder
// owns the key.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "minibus:lease:"}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	name := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// контекст вызывающего может быть уже отменён
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{name}, token).Err()
	}
	return release, true, nil
}

// LocalLocker is used when no Redis is configured; it only excludes
// overlapping runs inside this process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.held[key]; ok && l.now().Before(until) {
		return nil, false, nil
	}
	expires := l.now().Add(ttl)
	l.held[key] = expires

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(expires) {
			delete(l.held, key)
		}
	}
	return release, true, nil
}
