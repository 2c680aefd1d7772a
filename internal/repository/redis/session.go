package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront-validation/internal/session"
	apperrors "github.com/utafrali/storefront-validation/pkg/errors"
)

const sessionKeyPrefix = "validation:session:"

// SessionRepository implements repository.SessionRepository using Redis.
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new Redis-backed session snapshot repository.
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Save writes snap with the given TTL, overwriting the previous snapshot.
func (r *SessionRepository) Save(ctx context.Context, snap session.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	if err := r.client.Set(ctx, sessionKeyPrefix+snap.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Get reads the snapshot of session id.
func (r *SessionRepository) Get(ctx context.Context, id string) (session.Snapshot, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Snapshot{}, apperrors.NotFound("session", id)
		}
		return session.Snapshot{}, fmt.Errorf("redis get session: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return snap, nil
}

// Delete removes the snapshot of session id.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("session", id)
	}
	return nil
}
