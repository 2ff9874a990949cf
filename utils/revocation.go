package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "jwt:revoked:"

// Revocations remembers logged-out session ids until their tokens expire.
type Revocations struct {
	rc *redis.Client

	mu    sync.RWMutex
	local map[string]time.Time
}

func NewRevocations(rc *redis.Client) *Revocations {
	return &Revocations{rc: rc, local: map[string]time.Time{}}
}

// Revoke blocks the session id until expiresAt.
func (r *Revocations) Revoke(ctx context.Context, id string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 || id == "" {
		return
	}
	if r.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := r.rc.Set(ctx, revokedKeyPrefix+id, "1", ttl).Err(); err == nil {
			return
		}
	}
	r.mu.Lock()
	r.local[id] = expiresAt
	r.mu.Unlock()
}

// IsRevoked reports whether the session id was logged out. Redis errors fail open.
func (r *Revocations) IsRevoked(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	if r.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := r.rc.Exists(ctx, revokedKeyPrefix+id).Result()
		if err == nil && n > 0 {
			return true
		}
	}
	r.mu.RLock()
	expiresAt, ok := r.local[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		r.mu.Lock()
		delete(r.local, id)
		r.mu.Unlock()
		return false
	}
	return true
}
