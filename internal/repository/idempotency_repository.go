package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

// IdempotencyRepository stores idempotency keys in Redis.
type IdempotencyRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewIdempotencyRepository constructs the repository. A nil client disables every operation.
func NewIdempotencyRepository(client *redis.Client, logger *zap.Logger) *IdempotencyRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyRepository{client: client, logger: logger}
}

// Get returns the value stored for key or ErrCacheMiss.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (string, error) {
	if r.client == nil {
		return "", appErrors.ErrCacheMiss
	}
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", appErrors.ErrCacheMiss
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Reserve stores value under key only when the key is absent.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Set overwrites key with value.
func (r *IdempotencyRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *IdempotencyRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *IdempotencyRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
