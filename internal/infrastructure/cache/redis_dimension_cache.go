package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storefront/analytics/internal/domain/reports"
)

// RedisDimensionCache is a read-through cache over a DimensionRepository.
// Segment universes (all product ids, all category ids, ...) are read on
// every segmented report request but change rarely, so a short TTL removes
// most of the catalog queries from the read path.
type RedisDimensionCache struct {
	client    *redis.Client
	source    reports.DimensionRepository
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDimensionCache creates a new Redis-backed dimension cache
func NewRedisDimensionCache(cfg RedisConfig, source reports.DimensionRepository, ttl time.Duration, logger *zap.Logger) (*RedisDimensionCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisDimensionCacheWithClient(client, source, ttl, logger), nil
}

// NewRedisDimensionCacheWithClient creates a cache with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisDimensionCacheWithClient(client *redis.Client, source reports.DimensionRepository, ttl time.Duration, logger *zap.Logger) *RedisDimensionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisDimensionCache{
		client:    client,
		source:    source,
		keyPrefix: "reports:dimension:",
		ttl:       ttl,
		logger:    logger,
	}
}

// AllSegmentIDs returns the cached segment universe for the dimension,
// falling back to the source repository on a miss or any Redis failure. A
// broken cache degrades to slower reads, never to wrong reports.
func (c *RedisDimensionCache) AllSegmentIDs(ctx context.Context, dimension reports.Dimension) ([]int64, error) {
	key := c.keyPrefix + string(dimension)

	cached, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var ids []int64
		if err := json.Unmarshal([]byte(cached), &ids); err == nil {
			return ids, nil
		}
		c.logger.Warn("Discarding unreadable dimension cache entry", zap.String("key", key))
	} else if err != redis.Nil {
		c.logger.Warn("Dimension cache read failed, falling back to source",
			zap.String("dimension", string(dimension)),
			zap.Error(err),
		)
	}

	ids, err := c.source.AllSegmentIDs(ctx, dimension)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(ids); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("Dimension cache write failed",
				zap.String("dimension", string(dimension)),
				zap.Error(err),
			)
		}
	}

	return ids, nil
}

// Invalidate drops the cached universe for one dimension
func (c *RedisDimensionCache) Invalidate(ctx context.Context, dimension reports.Dimension) error {
	return c.client.Del(ctx, c.keyPrefix+string(dimension)).Err()
}

// Close closes the underlying Redis client
func (c *RedisDimensionCache) Close() error {
	return c.client.Close()
}
