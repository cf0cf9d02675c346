package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore keeps issued login sessions in Redis so tokens can be
// revoked before their JWT expiry. Redis TTL handles expiry cleanup.
type SessionStore struct {
	rdb *redis.Client
}

// NewSessionStore creates a session store
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

// GenerateSessionID generates a random session id
func GenerateSessionID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("auth:session:%s", id)
}

// Create records a new session with the given TTL
func (s *SessionStore) Create(ctx context.Context, ttl time.Duration) (string, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(id), time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return id, nil
}

// Valid reports whether the session still exists
func (s *SessionStore) Valid(ctx context.Context, id string) (bool, error) {
	exists, err := s.rdb.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return exists > 0, nil
}

// Revoke deletes a session (logout)
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
