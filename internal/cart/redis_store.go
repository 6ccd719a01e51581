package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps cart snapshots in Redis with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed snapshot store. A zero ttl keeps keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cart-redis-store").Logger(),
	}
}

// Get returns the snapshot stored under key, or nil if there is none.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		s.logger.Error().Err(err).Str("key", key).Msg("failed to read cart snapshot")
		return nil, fmt.Errorf("failed to read cart snapshot %s: %w", key, err)
	}
	return data, nil
}

// Set stores the snapshot and refreshes its TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to write cart snapshot")
		return fmt.Errorf("failed to write cart snapshot %s: %w", key, err)
	}
	return nil
}

// Remove deletes the snapshot.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to remove cart snapshot")
		return fmt.Errorf("failed to remove cart snapshot %s: %w", key, err)
	}
	return nil
}
