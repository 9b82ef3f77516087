package cache

import (
	"fmt"
	"time"

	appbilling "github.com/propman/backend/internal/application/billing"
	"github.com/propman/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// YearViewCacheFactory creates year view caches based on configuration
type YearViewCacheFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// YearViewCacheFactoryOption is a functional option for configuring the factory
type YearViewCacheFactoryOption func(*YearViewCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) YearViewCacheFactoryOption {
	return func(f *YearViewCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory
// cache when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) YearViewCacheFactoryOption {
	return func(f *YearViewCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewYearViewCacheFactory creates a new factory
func NewYearViewCacheFactory(cfg config.RedisConfig, ttl time.Duration, opts ...YearViewCacheFactoryOption) *YearViewCacheFactory {
	f := &YearViewCacheFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateCache creates a year view cache, trying Redis first and falling
// back to the in-memory cache when Redis is unavailable and fallback is
// allowed. In-memory entries are not shared across instances, so each
// instance may rebuild views the marker already invalidated elsewhere.
func (f *YearViewCacheFactory) CreateCache() (appbilling.YearViewCache, error) {
	cache, err := NewRedisYearViewCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.ttl)
	if err == nil {
		f.logger.Info("using Redis year view cache")
		return cache, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for year view cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory year view cache",
		zap.Error(err),
	)
	return NewInMemoryYearViewCache(f.ttl), nil
}
