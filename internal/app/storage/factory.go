// Package storage builds the tag store and sync status persistence selected
// by the configuration, and owns their lifecycle.
package storage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates the storage components for one backend.
// CreateStore returns the same instance on every call; Cleanup closes it.
type Factory interface {
	// CreateStore returns the tag store
	CreateStore(ctx context.Context) (store.Store, error)

	// CreateStatusPersistence returns where sync status is kept
	CreateStatusPersistence(ctx context.Context) (status.StatusPersistence, error)

	// Cleanup releases the store and any connections held by the factory
	Cleanup()
}

// FactoryOption configures the factories built by NewStorageFactory
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	tracer trace.Tracer
}

// WithTracer sets the tracer handed to stores that emit spans
func WithTracer(tracer trace.Tracer) FactoryOption {
	return func(o *factoryOptions) {
		o.tracer = tracer
	}
}

// NewStorageFactory creates the factory for the configured storage type.
// When a Redis cache is configured the store is wrapped in a read-through cache.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...FactoryOption) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	o := &factoryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		factory Factory
		err     error
	)
	switch cfg.GetStorageType() {
	case config.StorageTypeMemory, config.StorageTypeFile:
		factory, err = NewFileFactory(cfg)
	case config.StorageTypeSQLite:
		factory, err = NewSQLiteFactory(cfg, o.tracer)
	case config.StorageTypeDatabase:
		factory, err = NewDatabaseFactory(ctx, cfg, o.tracer)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
	if err != nil {
		return nil, err
	}

	if cfg.Cache != nil && cfg.Cache.Redis != nil {
		return NewCachedFactory(factory, cfg.Cache.Redis), nil
	}
	return factory, nil
}

// newStatusPersistence keeps sync status on disk only when asked to
func newStatusPersistence(cfg *config.Config) status.StatusPersistence {
	if cfg.Sync.PersistStatus {
		return status.NewFileStatusPersistence(cfg.GetStatusFilePath())
	}
	return status.NewMemoryStatusPersistence()
}
