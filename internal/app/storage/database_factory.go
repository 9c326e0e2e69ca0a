package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/sotags/sotags-api/internal/app/storage/auth"
	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/store/postgres"
)

const (
	pingMaxTries       = 5
	pingMaxElapsedTime = 30 * time.Second
)

// DatabaseFactory creates the PostgreSQL backed store.
// It owns the connection pool until a store takes it over.
type DatabaseFactory struct {
	config *config.Config
	pool   *pgxpool.Pool
	tracer trace.Tracer

	mu    sync.Mutex
	store *postgres.Store
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a database-backed storage factory.
// It establishes a connection pool and waits for the database to answer.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory")

	pool, err := buildDatabaseConnectionPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := waitForDatabase(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &DatabaseFactory{
		config: cfg,
		pool:   pool,
		tracer: tracer,
	}, nil
}

// CreateStore implements Factory
func (d *DatabaseFactory) CreateStore(_ context.Context) (store.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.store != nil {
		return d.store, nil
	}

	opts := []postgres.Option{postgres.WithConnectionPool(d.pool)}
	if d.tracer != nil {
		opts = append(opts, postgres.WithTracer(d.tracer))
		slog.Debug("Database store tracing enabled")
	}

	s, err := postgres.New(opts...)
	if err != nil {
		return nil, err
	}
	d.store = s
	return s, nil
}

// CreateStatusPersistence implements Factory
func (d *DatabaseFactory) CreateStatusPersistence(_ context.Context) (status.StatusPersistence, error) {
	return newStatusPersistence(d.config), nil
}

// Cleanup closes the connection pool
func (d *DatabaseFactory) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	slog.Info("Closing database connection pool")
	if d.store != nil {
		// the store owns the pool from here on
		_ = d.store.Close()
		d.store = nil
		d.pool = nil
		return
	}
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
}

// buildDatabaseConnectionPool creates a connection pool for the application user
func buildDatabaseConnectionPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	if lifetime := cfg.GetConnMaxLifetime(); lifetime > 0 {
		poolConfig.MaxConnLifetime = lifetime
	}

	if cfg.DynamicAuth != nil {
		beforeConnect, err := auth.NewDynamicAuth(ctx, cfg, cfg.User)
		if err != nil {
			return nil, fmt.Errorf("failed to configure dynamic authentication: %w", err)
		}
		poolConfig.BeforeConnect = beforeConnect
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	slog.Info("Database connection pool created",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", poolConfig.MaxConns)
	return pool, nil
}

// waitForDatabase pings the pool with exponential backoff
func waitForDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := pool.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Database not reachable yet", "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(pingMaxTries),
		backoff.WithMaxElapsedTime(pingMaxElapsedTime),
	)
	if err != nil {
		return fmt.Errorf("database is not reachable: %w", err)
	}
	return nil
}
