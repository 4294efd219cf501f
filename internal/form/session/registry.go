// Package session manages wizard session lifecycles: durable snapshots
// in Redis and the live in-memory handles built on top of them.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lead-capture/internal/common/database"
	"lead-capture/internal/common/errors"
	"lead-capture/internal/models"
)

const sessionKeyPrefix = "wizard:session:"

// Registry stores wizard session snapshots in Redis.
type Registry struct {
	rdb *database.RedisClient
	ttl time.Duration
}

// NewRegistry returns a registry with the given snapshot TTL.
func NewRegistry(rdb *database.RedisClient, ttl time.Duration) *Registry {
	return &Registry{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Save writes the snapshot, refreshing its TTL and stamping the save
// time.
func (r *Registry) Save(ctx context.Context, snapshot models.WizardSession) error {
	snapshot.Touch()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(snapshot.ID), data, r.ttl); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns the stored snapshot for the given session.
func (r *Registry) Load(ctx context.Context, id string) (*models.WizardSession, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id))
	if err == redis.Nil {
		return nil, errors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var snapshot models.WizardSession
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &snapshot, nil
}

// Delete removes the snapshot. Deleting an absent session is a no-op.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
