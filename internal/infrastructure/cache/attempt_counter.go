package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/tenant-isolation-core/internal/service/security"
)

// AttemptKeyPrefix namespaces attempt counter keys in Redis
const AttemptKeyPrefix = "isolation:attempts:"

// redisAttemptCounter implements security.AttemptCounter on Redis sorted
// sets for sliding window counting. Each attempt is a member scored by its
// nanosecond timestamp; expired members are trimmed on every operation.
// Counts survive process restarts and are shared across instances, which
// the in-memory counter cannot offer.
type redisAttemptCounter struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisAttemptCounter creates a Redis-backed attempt counter
func NewRedisAttemptCounter(client *redis.Client, logger *zap.Logger) security.AttemptCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisAttemptCounter{
		client: client,
		logger: logger,
	}
}

// Increment records an attempt and returns the count within the window,
// including this attempt
func (r *redisAttemptCounter) Increment(ctx context.Context, key security.AttemptKey, window time.Duration) (int64, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	counterKey := AttemptKeyPrefix + key.String()

	member := fmt.Sprintf("%d-%d", now.UnixNano(), now.Nanosecond()%1000)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, counterKey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, counterKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})
	countCmd := pipe.ZCard(ctx, counterKey)
	pipe.Expire(ctx, counterKey, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("attempt counter pipeline failed",
			zap.String("key", key.String()),
			zap.Duration("window", window),
			zap.Error(err))
		return 0, fmt.Errorf("attempt counter pipeline failed: %w", err)
	}

	return countCmd.Val(), nil
}

// Count returns the current count within the window without recording
func (r *redisAttemptCounter) Count(ctx context.Context, key security.AttemptKey, window time.Duration) (int64, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	counterKey := AttemptKeyPrefix + key.String()

	if err := r.client.ZRemRangeByScore(ctx, counterKey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10)).Err(); err != nil {
		r.logger.Error("attempt counter cleanup failed",
			zap.String("key", key.String()),
			zap.Error(err))
		return 0, fmt.Errorf("attempt counter cleanup failed: %w", err)
	}

	count, err := r.client.ZCard(ctx, counterKey).Result()
	if err != nil {
		r.logger.Error("attempt counter count failed",
			zap.String("key", key.String()),
			zap.Error(err))
		return 0, fmt.Errorf("attempt counter count failed: %w", err)
	}

	return count, nil
}

// Reset clears the counter for a key
func (r *redisAttemptCounter) Reset(ctx context.Context, key security.AttemptKey) error {
	counterKey := AttemptKeyPrefix + key.String()

	if err := r.client.Del(ctx, counterKey).Err(); err != nil {
		r.logger.Error("attempt counter reset failed",
			zap.String("key", key.String()),
			zap.Error(err))
		return fmt.Errorf("attempt counter reset failed: %w", err)
	}

	r.logger.Debug("attempt counter reset", zap.String("key", key.String()))
	return nil
}

// CleanupExpiredKeys removes counter keys that lost their expiration
// (should be called periodically)
func (r *redisAttemptCounter) CleanupExpiredKeys(ctx context.Context) (int64, error) {
	pattern := AttemptKeyPrefix + "*"

	var cursor uint64
	var deletedCount int64

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			r.logger.Error("attempt counter cleanup scan failed", zap.Error(err))
			return deletedCount, fmt.Errorf("attempt counter cleanup scan failed: %w", err)
		}

		for _, key := range keys {
			ttl, err := r.client.TTL(ctx, key).Result()
			if err != nil {
				continue
			}
			if ttl == -1 {
				r.client.Del(ctx, key)
				deletedCount++
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	if deletedCount > 0 {
		r.logger.Info("attempt counter cleanup completed",
			zap.Int64("deleted_keys", deletedCount))
	}

	return deletedCount, nil
}
