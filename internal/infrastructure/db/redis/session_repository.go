package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRepository stores provider session tokens in Redis with a TTL.
// Key format: fxsession:<user_id>
type SessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Read returns the stored token, or "" when none is stored or it expired.
func (r *SessionRepository) Read(ctx context.Context, userID string) (string, error) {
	token, err := r.client.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session read: %w", err)
	}
	return token, nil
}

func (r *SessionRepository) Write(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	return nil
}

func (r *SessionRepository) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

func (r *SessionRepository) key(userID string) string {
	return "fxsession:" + userID
}
