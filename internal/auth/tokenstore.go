// Package auth owns the session's authentication lifecycle: durable
// token storage, the startup verification guard, and the login,
// registration and logout flows.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lead-capture/internal/common/database"
)

const tokenKeyPrefix = "auth:token:"

// RedisTokenStore persists one session's auth token in Redis so the
// session survives a process restart.
type RedisTokenStore struct {
	rdb       *database.RedisClient
	sessionID string
	ttl       time.Duration
}

// NewRedisTokenStore returns a token store scoped to one session.
func NewRedisTokenStore(rdb *database.RedisClient, sessionID string, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{
		rdb:       rdb,
		sessionID: sessionID,
		ttl:       ttl,
	}
}

func (s *RedisTokenStore) key() string {
	return tokenKeyPrefix + s.sessionID
}

// Save writes the token under the session's key, refreshing the TTL.
func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	if err := s.rdb.Set(ctx, s.key(), token, s.ttl); err != nil {
		return fmt.Errorf("failed to save auth token: %w", err)
	}
	return nil
}

// Load returns the stored token, or empty when none is present.
func (s *RedisTokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.key())
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load auth token: %w", err)
	}
	return token, nil
}

// Clear removes the stored token. Clearing an absent token is a no-op.
func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key()); err != nil {
		return fmt.Errorf("failed to clear auth token: %w", err)
	}
	return nil
}
