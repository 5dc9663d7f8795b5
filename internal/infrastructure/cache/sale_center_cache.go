package cache

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	closeoutapp "github.com/closeout/backend/internal/application/closeout"
	"github.com/closeout/backend/internal/domain/closeout"
)

// defaultSaleCenterKey is the Redis hash holding till id -> name
const defaultSaleCenterKey = "closeout:sale-centers"

// SaleCenterStore is a shared tier for till names
type SaleCenterStore interface {
	Load(ctx context.Context) (map[string]string, error)
	Store(ctx context.Context, names map[string]string, ttl time.Duration) error
}

// SaleCenterNameCache implements SaleCenterDirectory with a two-tier
// read-through cache over the sale-centers table.
// L1: local map with a TTL
// L2: optional shared store (Redis)
type SaleCenterNameCache struct {
	source closeout.SaleCenterRepository
	shared SaleCenterStore
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	names    map[string]string
	loadedAt time.Time
}

// SaleCenterCacheOption configures a SaleCenterNameCache
type SaleCenterCacheOption func(*SaleCenterNameCache)

// WithSharedStore adds a shared tier between the local map and the table
func WithSharedStore(s SaleCenterStore) SaleCenterCacheOption {
	return func(c *SaleCenterNameCache) { c.shared = s }
}

// WithCacheClock sets the clock used for expiry
func WithCacheClock(now func() time.Time) SaleCenterCacheOption {
	return func(c *SaleCenterNameCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCacheLogger sets the logger
func WithCacheLogger(l *zap.Logger) SaleCenterCacheOption {
	return func(c *SaleCenterNameCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewSaleCenterNameCache creates a cache over source holding names for ttl
func NewSaleCenterNameCache(source closeout.SaleCenterRepository, ttl time.Duration, opts ...SaleCenterCacheOption) *SaleCenterNameCache {
	c := &SaleCenterNameCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Names returns till id -> display name. The returned map is a copy.
func (c *SaleCenterNameCache) Names(ctx context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.names != nil && c.now().Sub(c.loadedAt) < c.ttl {
		return maps.Clone(c.names), nil
	}

	if c.shared != nil {
		names, err := c.shared.Load(ctx)
		switch {
		case err != nil:
			c.logger.Warn("Shared sale center cache unavailable", zap.Error(err))
		case len(names) > 0:
			c.remember(names)
			return maps.Clone(names), nil
		}
	}

	names, err := c.source.FindNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale centers: %w", err)
	}
	c.remember(names)

	if c.shared != nil && len(names) > 0 {
		if err := c.shared.Store(ctx, names, c.ttl); err != nil {
			c.logger.Warn("Failed to populate shared sale center cache", zap.Error(err))
		}
	}
	return maps.Clone(names), nil
}

func (c *SaleCenterNameCache) remember(names map[string]string) {
	c.names = maps.Clone(names)
	c.loadedAt = c.now()
}

// Invalidate drops the local tier
func (c *SaleCenterNameCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = nil
}

// Ensure SaleCenterNameCache implements SaleCenterDirectory
var _ closeoutapp.SaleCenterDirectory = (*SaleCenterNameCache)(nil)

// RedisSaleCenterStore keeps till names in one Redis hash
type RedisSaleCenterStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisSaleCenterStore creates a store; an empty key uses the default
func NewRedisSaleCenterStore(client redis.UniversalClient, key string) *RedisSaleCenterStore {
	if key == "" {
		key = defaultSaleCenterKey
	}
	return &RedisSaleCenterStore{client: client, key: key}
}

// Load returns the cached names; an expired or missing hash yields an empty map
func (s *RedisSaleCenterStore) Load(ctx context.Context) (map[string]string, error) {
	names, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read sale centers: %w", err)
	}
	return names, nil
}

// Store replaces the hash and sets its expiry
func (s *RedisSaleCenterStore) Store(ctx context.Context, names map[string]string, ttl time.Duration) error {
	values := make([]any, 0, len(names)*2)
	for id, name := range names {
		values = append(values, id, name)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, values...)
		pipe.Expire(ctx, s.key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write sale centers: %w", err)
	}
	return nil
}
