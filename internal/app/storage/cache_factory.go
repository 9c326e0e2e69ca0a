package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/store/cache"
)

// CachedFactory puts a Redis read-through cache in front of the store of
// another factory
type CachedFactory struct {
	inner  Factory
	config *config.RedisConfig

	mu     sync.Mutex
	client *cache.Client
	store  *cache.Store
}

var _ Factory = (*CachedFactory)(nil)

// NewCachedFactory wraps inner. Redis is only contacted by CreateStore.
func NewCachedFactory(inner Factory, cfg *config.RedisConfig) *CachedFactory {
	return &CachedFactory{inner: inner, config: cfg}
}

// CreateStore implements Factory
func (c *CachedFactory) CreateStore(ctx context.Context) (store.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store, nil
	}

	inner, err := c.inner.CreateStore(ctx)
	if err != nil {
		return nil, err
	}

	password, err := c.config.GetPassword()
	if err != nil {
		return nil, err
	}

	client, err := cache.NewClient(ctx, &redis.Options{
		Addr:     c.config.Address,
		Password: password,
		DB:       c.config.DB,
		PoolSize: c.config.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tag cache: %w", err)
	}

	c.client = client
	c.store = cache.NewStore(inner, client, c.config.GetKeyPrefix(), c.config.GetTTL())
	return c.store, nil
}

// CreateStatusPersistence implements Factory
func (c *CachedFactory) CreateStatusPersistence(ctx context.Context) (status.StatusPersistence, error) {
	return c.inner.CreateStatusPersistence(ctx)
}

// Cleanup closes the cache connection and then the wrapped factory
func (c *CachedFactory) Cleanup() {
	c.mu.Lock()
	if c.client != nil {
		slog.Info("Closing tag cache connection")
		if err := c.client.Close(); err != nil {
			slog.Warn("Failed to close tag cache connection", "error", err)
		}
		c.client = nil
		c.store = nil
	}
	c.mu.Unlock()

	c.inner.Cleanup()
}
