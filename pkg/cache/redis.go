package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/models"
)

const redisKeyPrefix = "fern:resolution:"

// Redis caches resolution results in Redis so every process sharing the
// instance sees the same entries. Payloads are JSON; refs deserialize
// without a resolver and the pipeline rebinds them on every hit.
type Redis struct {
	rdb    *goredis.Client
	logger ectologger.Logger
}

// NewRedis creates a Redis-backed cache over an existing client
func NewRedis(rdb *goredis.Client, logger ectologger.Logger) *Redis {
	return &Redis{
		rdb:    rdb,
		logger: logger,
	}
}

func (c *Redis) Get(ctx context.Context, entityType, normalizedName string) (*models.ResolutionResult, bool) {
	raw, err := c.rdb.Get(ctx, redisKey(entityType, normalizedName)).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.WithContext(ctx).WithError(err).Warn("Cache read failed, treating as miss")
		}
		return nil, false
	}

	var result models.ResolutionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Cache entry unreadable, treating as miss")
		return nil, false
	}

	return &result, true
}

func (c *Redis) Set(ctx context.Context, entityType, normalizedName string, result *models.ResolutionResult, ttl time.Duration) {
	if result == nil || ttl <= 0 {
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Failed to marshal cache entry, skipping")
		return
	}

	if err := c.rdb.Set(ctx, redisKey(entityType, normalizedName), raw, ttl).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Cache write failed, skipping")
	}
}

func (c *Redis) Invalidate(ctx context.Context, entityType, normalizedName string) {
	if err := c.rdb.Del(ctx, redisKey(entityType, normalizedName)).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("Cache invalidation failed")
	}
}

func redisKey(entityType, normalizedName string) string {
	return fmt.Sprintf("%s%s:%s", redisKeyPrefix, entityType, normalizedName)
}
