// Package cache implements the year view cache behind the application's
// YearViewCache contract, on Redis for shared deployments and in memory
// for single instances and tests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	appbilling "github.com/propman/backend/internal/application/billing"
	"github.com/redis/go-redis/v9"
)

const yearViewKeyPrefix = "billing:yearview:"

// RedisYearViewCache stores rendered year views in Redis so every
// instance serves the same cached copy. Entries carry a TTL as a safety
// net; staleness is detected by the year marker, not the TTL.
type RedisYearViewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisYearViewCache creates a Redis-backed year view cache
func NewRedisYearViewCache(cfg RedisConfig, ttl time.Duration) (*RedisYearViewCache, error) {
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

	return &RedisYearViewCache{client: client, ttl: ttl}, nil
}

// NewRedisYearViewCacheWithClient creates a cache on an existing client,
// useful for testing or when sharing a client across components
func NewRedisYearViewCacheWithClient(client *redis.Client, ttl time.Duration) *RedisYearViewCache {
	return &RedisYearViewCache{client: client, ttl: ttl}
}

func yearViewKey(clientID, unitID uuid.UUID, fiscalYear int) string {
	return fmt.Sprintf("%s%s:%s:%d", yearViewKeyPrefix, clientID, unitID, fiscalYear)
}

// Get returns the cached year view, or nil on a miss
func (c *RedisYearViewCache) Get(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) (*appbilling.CachedYearView, error) {
	payload, err := c.client.Get(ctx, yearViewKey(clientID, unitID, fiscalYear)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read year view from cache: %w", err)
	}

	var cached appbilling.CachedYearView
	if err := json.Unmarshal(payload, &cached); err != nil {
		// A corrupt entry behaves like a miss so the caller rebuilds.
		return nil, nil
	}
	return &cached, nil
}

// Set stores a rendered year view
func (c *RedisYearViewCache) Set(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int, view *appbilling.CachedYearView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to encode year view: %w", err)
	}
	return c.client.Set(ctx, yearViewKey(clientID, unitID, fiscalYear), payload, c.ttl).Err()
}

// Invalidate drops the cached year view
func (c *RedisYearViewCache) Invalidate(ctx context.Context, clientID, unitID uuid.UUID, fiscalYear int) error {
	return c.client.Del(ctx, yearViewKey(clientID, unitID, fiscalYear)).Err()
}

// Close closes the Redis client
func (c *RedisYearViewCache) Close() error {
	return c.client.Close()
}

var _ appbilling.YearViewCache = (*RedisYearViewCache)(nil)
