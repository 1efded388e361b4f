// Package session stores login sessions in Redis. A session maps an
// opaque session id, carried in a cookie, to the authenticated user id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store keeps sessions in Redis with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a session store on the given Redis client.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Create issues a new session for the user and returns its id.
func (s *Store) Create(ctx context.Context, userID string) (string, error) {
	sid := uuid.NewString()
	if err := s.client.Set(ctx, key(sid), userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return sid, nil
}

// Lookup resolves a session id to the user it belongs to and refreshes
// the session TTL.
func (s *Store) Lookup(ctx context.Context, sessionID string) (string, error) {
	userID, err := s.client.Get(ctx, key(sessionID)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	s.client.Expire(ctx, key(sessionID), s.ttl)
	return userID, nil
}

// Delete removes a session. Deleting an unknown session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, key(sessionID)).Err()
}

func key(sessionID string) string {
	return "session:" + sessionID
}
