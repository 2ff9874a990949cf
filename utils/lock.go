package utils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('DEL', KEYS[1]) end return 0`)

// Locker hands out expiring locks backed by Redis SET NX. Without a client, locks are process local.
type Locker struct {
	rc *redis.Client

	mu    sync.Mutex
	local map[string]time.Time
}

func NewLocker(rc *redis.Client) *Locker {
	return &Locker{rc: rc, local: map[string]time.Time{}}
}

// TryLock acquires key for ttl without waiting.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l.rc != nil {
		token := uuid.NewString()
		ok, err := l.rc.SetNX(ctx, key, token, ttl).Result()
		if err == nil {
			if !ok {
				return nil, false, nil
			}
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.rc, []string{key}, token).Err()
			}, true, nil
		}
		L().Sugar().Warnf("redis lock failed key=%s err=%v, using local lock", key, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if until, held := l.local[key]; held && time.Now().Before(until) {
		return nil, false, nil
	}
	until := time.Now().Add(ttl)
	l.local[key] = until
	return func() {
		l.mu.Lock()
		if l.local[key] == until {
			delete(l.local, key)
		}
		l.mu.Unlock()
	}, true, nil
}
