// Package redis provides a shared session store for embed hosts that
// run more than one instance behind a load balancer.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "widget:session:"

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Store persists session ids in Redis
type Store struct {
	rdb *redis.Client
}

// NewStore creates a Redis-backed session store and verifies the
// connection.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{rdb: rdb}, nil
}

// Get returns the stored session id for a business, or ""
func (s *Store) Get(ctx context.Context, businessID string) (string, error) {
	id, err := s.rdb.Get(ctx, sessionKeyPrefix+businessID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	return id, nil
}

// Set stores the session id for a business. Session ids do not expire;
// the conversation reset flow is the only thing that replaces them.
func (s *Store) Set(ctx context.Context, businessID, sessionID string) error {
	if err := s.rdb.Set(ctx, sessionKeyPrefix+businessID, sessionID, 0).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Delete removes the stored session id for a business
func (s *Store) Delete(ctx context.Context, businessID string) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+businessID).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.rdb.Close()
}
