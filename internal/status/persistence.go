// Package status provides sync status tracking and persistence for the tag cache.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

// StatusFileName is the status file kept under the data directory
const StatusFileName = "status.json"

// StatusPersistence stores the latest SyncStatus so a restart reports the
// last completed cycle. LoadStatus returns an idle status before the first save.
//
//nolint:revive // status.StatusPersistence reads fine at call sites
type StatusPersistence interface {
	SaveStatus(ctx context.Context, syncStatus *SyncStatus) error
	LoadStatus(ctx context.Context) (*SyncStatus, error)
}

type fileStatusPersistence struct {
	path string
}

// NewFileStatusPersistence keeps the status as indented JSON at path
func NewFileStatusPersistence(path string) StatusPersistence {
	return &fileStatusPersistence{path: path}
}

// SaveStatus replaces the file through a rename so readers never see a partial write
func (f *fileStatusPersistence) SaveStatus(_ context.Context, s *SyncStatus) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync status: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	return nil
}

func (f *fileStatusPersistence) LoadStatus(_ context.Context) (*SyncStatus, error) {
	data, err := os.ReadFile(f.path) // #nosec G304 -- path comes from configuration
	if errors.Is(err, fs.ErrNotExist) {
		return &SyncStatus{Phase: SyncPhaseIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var s SyncStatus
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.path, err)
	}
	return &s, nil
}

// memoryStatusPersistence keeps the status for the lifetime of the process
type memoryStatusPersistence struct {
	mu     sync.RWMutex
	status *SyncStatus
}

// NewMemoryStatusPersistence creates a StatusPersistence that does not touch disk
func NewMemoryStatusPersistence() StatusPersistence {
	return &memoryStatusPersistence{}
}

func (m *memoryStatusPersistence) SaveStatus(_ context.Context, status *SyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status.Clone()
	return nil
}

func (m *memoryStatusPersistence) LoadStatus(_ context.Context) (*SyncStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == nil {
		return &SyncStatus{Phase: SyncPhaseIdle}, nil
	}
	return m.status.Clone(), nil
}
