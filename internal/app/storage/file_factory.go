package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/status"
	"github.com/sotags/sotags-api/internal/store"
)

// FileFactory creates memory or JSON file backed stores
type FileFactory struct {
	config *config.Config

	mu    sync.Mutex
	store store.Store
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a factory for the memory and file storage types.
// For file storage the parent directory of the tag file is created.
func NewFileFactory(cfg *config.Config) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.GetStorageType() == config.StorageTypeFile {
		dir := filepath.Dir(cfg.GetFileStoragePath())
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
		slog.Info("Creating file-based storage factory", "path", cfg.GetFileStoragePath())
	} else {
		slog.Info("Creating in-memory storage factory")
	}

	return &FileFactory{config: cfg}, nil
}

// CreateStore implements Factory
func (f *FileFactory) CreateStore(_ context.Context) (store.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store != nil {
		return f.store, nil
	}

	if f.config.GetStorageType() == config.StorageTypeMemory {
		f.store = store.NewMemoryStore()
		return f.store, nil
	}

	fs, err := store.NewFileStore(f.config.GetFileStoragePath())
	if err != nil {
		return nil, err
	}
	f.store = fs
	return f.store, nil
}

// CreateStatusPersistence implements Factory
func (f *FileFactory) CreateStatusPersistence(_ context.Context) (status.StatusPersistence, error) {
	return newStatusPersistence(f.config), nil
}

// Cleanup implements Factory
func (f *FileFactory) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store == nil {
		return
	}
	if err := f.store.Close(); err != nil {
		slog.Warn("Failed to close tag store", "error", err)
	}
	f.store = nil
}
