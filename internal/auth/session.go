package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// SessionStore tracks live session jtis in Redis. A token is only accepted
// while its jti is present; logout deletes the key and the TTL cleans up
// whatever is never logged out.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Create(ctx context.Context, jti, username string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKeyPrefix+jti, username, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Active reports whether the session is still live.
func (s *SessionStore) Active(ctx context.Context, jti string) (bool, error) {
	_, err := s.client.Get(ctx, sessionKeyPrefix+jti).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return true, nil
}

func (s *SessionStore) Revoke(ctx context.Context, jti string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+jti).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
