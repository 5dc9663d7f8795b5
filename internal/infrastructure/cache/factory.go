package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
	"github.com/closeout/backend/internal/domain/closeout"
	"github.com/closeout/backend/internal/infrastructure/config"
)

// Factory creates locks and caches based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(RedisConfig) (*redis.Client, error)

	client *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory implementations when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		connect:               NewRedisClient,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// redisClient connects once and reuses the client. It returns nil when Redis is disabled.
func (f *Factory) redisClient() (*redis.Client, error) {
	if !f.redisConfig.Enabled {
		return nil, nil
	}
	if f.client != nil {
		return f.client, nil
	}
	client, err := f.connect(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, err
	}
	f.client = client
	return client, nil
}

// CreateSyncLocker creates a Redis lock when Redis is enabled, and falls back
// to an in-memory lock otherwise
// WARNING: In-memory locks do not serialise runs across process instances
func (f *Factory) CreateSyncLocker() (closeoutapp.SyncLocker, error) {
	client, err := f.redisClient()
	if err == nil && client != nil {
		f.logger.Info("using Redis sync lock")
		return NewRedisSyncLockerWithClient(client, ""), nil
	}
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("Redis required for sync lock but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory sync lock. "+
			"Concurrent runs on other hosts will not be serialised.",
			zap.Error(err),
		)
	}
	return NewInMemorySyncLocker(), nil
}

// CreateSaleCenterDirectory creates a name cache over source, backed by
// Redis as a shared tier when available
func (f *Factory) CreateSaleCenterDirectory(source closeout.SaleCenterRepository, ttl time.Duration) closeoutapp.SaleCenterDirectory {
	opts := []SaleCenterCacheOption{WithCacheLogger(f.logger)}
	client, err := f.redisClient()
	switch {
	case err != nil:
		f.logger.Warn("Redis unavailable, sale center names cached locally only", zap.Error(err))
	case client != nil:
		opts = append(opts, WithSharedStore(NewRedisSaleCenterStore(client, "")))
	}
	return NewSaleCenterNameCache(source, ttl, opts...)
}

// Close releases the shared Redis client
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
