package utils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const nonceKeyPrefix = "auth:nonce:"

type nonceEntry struct {
	message   string
	expiresAt time.Time
}

// NonceStore issues single-use login messages per wallet address.
type NonceStore struct {
	rc  *redis.Client
	ttl time.Duration

	mu    sync.Mutex
	local map[string]nonceEntry
}

func NewNonceStore(rc *redis.Client, ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &NonceStore{rc: rc, ttl: ttl, local: map[string]nonceEntry{}}
}

// LoginMessage is the text a wallet signs to log in.
func LoginMessage(address, nonce string, issued time.Time) string {
	return fmt.Sprintf("Sign in to Is Your Day OK\n\nAddress: %s\nNonce: %s\nIssued At: %s",
		address, nonce, issued.UTC().Format(time.RFC3339))
}

// Issue creates a fresh login message for address, replacing any earlier one.
func (s *NonceStore) Issue(ctx context.Context, address string) (string, error) {
	msg := LoginMessage(address, uuid.NewString(), time.Now())
	key := nonceKeyPrefix + strings.ToLower(address)
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := s.rc.Set(ctx, key, msg, s.ttl).Err()
		if err == nil {
			return msg, nil
		}
		L().Sugar().Warnf("nonce store redis set failed: %v", err)
	}
	s.mu.Lock()
	s.local[key] = nonceEntry{message: msg, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return msg, nil
}

// Consume returns and removes the pending login message for address.
func (s *NonceStore) Consume(ctx context.Context, address string) (string, bool) {
	key := nonceKeyPrefix + strings.ToLower(address)
	if s.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if v, err := s.rc.GetDel(ctx, key).Result(); err == nil {
			return v, v != ""
		}
	}
	s.mu.Lock()
	e, ok := s.local[key]
	if ok {
		delete(s.local, key)
	}
	s.mu.Unlock()
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.message, true
}
