package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/medagenda/booking-api/pkg/errors"
)

const (
	idempotencyKeyPrefix = "idempotency:booking:"
	idempotencyPending   = "pending"
	maxIdempotencyKeyLen = 255
)

// IdempotencyRepository abstracts the key store.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Reserve(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyService remembers which appointment an Idempotency-Key produced. When the
// store is unreachable requests run without deduplication.
type IdempotencyService struct {
	repo       IdempotencyRepository
	ttl        time.Duration
	pendingTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewIdempotencyService constructs the service.
func NewIdempotencyService(repo IdempotencyRepository, ttl time.Duration, logger *zap.Logger, enabled bool) *IdempotencyService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotencyService{repo: repo, ttl: ttl, pendingTTL: time.Minute, logger: logger, enabled: enabled}
}

// Enabled indicates whether keys are honoured.
func (s *IdempotencyService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Do runs fn once per key and returns the id it produced. Later calls with the same key
// return the stored id with replayed set.
func (s *IdempotencyService) Do(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (string, bool, error) {
	if !s.Enabled() {
		id, err := fn(ctx)
		return id, false, err
	}
	if len(key) > maxIdempotencyKeyLen {
		return "", false, appErrors.Field("Idempotency-Key", "too_long", "Idempotency-Key must be at most 255 characters")
	}
	storeKey := idempotencyKeyPrefix + key

	id, found, err := s.lookup(ctx, storeKey)
	if err != nil {
		return "", false, err
	}
	if found {
		return id, true, nil
	}

	reserved, err := s.repo.Reserve(ctx, storeKey, idempotencyPending, s.pendingTTL)
	if err != nil {
		s.logger.Warn("idempotency reserve failed, proceeding without key", zap.String("key", key), zap.Error(err))
		id, err := fn(ctx)
		return id, false, err
	}
	if !reserved {
		id, found, err := s.lookup(ctx, storeKey)
		if err != nil {
			return "", false, err
		}
		if found {
			return id, true, nil
		}
		return "", false, inProgress()
	}

	id, err = fn(ctx)
	if err != nil {
		if delErr := s.repo.Delete(ctx, storeKey); delErr != nil {
			s.logger.Warn("idempotency release failed", zap.String("key", key), zap.Error(delErr))
		}
		return "", false, err
	}
	if err := s.repo.Set(ctx, storeKey, id, s.ttl); err != nil {
		s.logger.Warn("idempotency store failed", zap.String("key", key), zap.Error(err))
	}
	return id, false, nil
}

// lookup returns the stored id. A pending reservation is reported as a conflict and store
// failures are treated as misses.
func (s *IdempotencyService) lookup(ctx context.Context, storeKey string) (string, bool, error) {
	stored, err := s.repo.Get(ctx, storeKey)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("idempotency lookup failed", zap.String("key", storeKey), zap.Error(err))
		}
		return "", false, nil
	}
	if stored == idempotencyPending {
		return "", false, inProgress()
	}
	return stored, true, nil
}

func inProgress() error {
	return appErrors.WithField(appErrors.Clone(appErrors.ErrConflict, "a request with this Idempotency-Key is still in progress"), "Idempotency-Key", "in_progress")
}
