package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/store/sqlite"
)

// SQLiteFactory creates the SQLite backed store. The database is opened and
// migrated on the first CreateStore call.
type SQLiteFactory struct {
	config *config.Config
	tracer trace.Tracer

	mu    sync.Mutex
	store *sqlite.Store
}

var _ Factory = (*SQLiteFactory)(nil)

// NewSQLiteFactory creates a factory for the sqlite storage type
func NewSQLiteFactory(cfg *config.Config, tracer trace.Tracer) (*SQLiteFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	slog.Info("Creating SQLite storage factory", "path", cfg.GetSQLitePath())
	return &SQLiteFactory{config: cfg, tracer: tracer}, nil
}

// CreateStore implements Factory
func (f *SQLiteFactory) CreateStore(ctx context.Context) (store.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store != nil {
		return f.store, nil
	}

	var opts []sqlite.Option
	if f.tracer != nil {
		opts = append(opts, sqlite.WithTracer(f.tracer))
	}
	s, err := sqlite.Open(ctx, f.config.GetSQLitePath(), opts...)
	if err != nil {
		return nil, err
	}
	f.store = s
	return s, nil
}

// CreateStatusPersistence implements Factory
func (f *SQLiteFactory) CreateStatusPersistence(_ context.Context) (status.StatusPersistence, error) {
	return newStatusPersistence(f.config), nil
}

// Cleanup implements Factory
func (f *SQLiteFactory) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store == nil {
		return
	}
	slog.Info("Closing SQLite database")
	if err := f.store.Close(); err != nil {
		slog.Warn("Failed to close SQLite database", "error", err)
	}
	f.store = nil
}
