package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/resell/backend/internal/domain/shared"
	"github.com/resell/backend/internal/infrastructure/config"
)

// NewIdempotencyStore creates the idempotency store for the deployment.
// Redis is preferred; when it is unreachable and fallback is allowed, a
// local in-memory store is used instead. The fallback cannot deduplicate
// events across instances, so multi-instance deployments should require
// Redis.
func NewIdempotencyStore(cfg config.RedisConfig, allowInMemoryFallback bool, logger *zap.Logger) (shared.IdempotencyStore, error) {
	store, err := NewRedisIdempotencyStore(RedisOptions{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err == nil {
		logger.Info("Using Redis idempotency store", zap.String("addr", cfg.Addr()))
		return store, nil
	}

	if !allowInMemoryFallback {
		return nil, fmt.Errorf("cache: redis required for idempotency but unavailable: %w", err)
	}

	logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
