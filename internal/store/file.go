package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sotags/sotags-api/internal/tags"
)

// fileDocument is the on-disk layout of a FileStore
type fileDocument struct {
	NextID int64      `json:"nextId"`
	Tags   []tags.Tag `json:"tags"`
}

// FileStore is a MemoryStore that writes every mutation to a JSON file.
// Writes go to a temporary file that is renamed over the target, so a crash
// leaves either the old or the new collection on disk.
type FileStore struct {
	*MemoryStore
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens the store at path, loading any existing collection
func NewFileStore(path string) (*FileStore, error) {
	// #nosec G304 -- path comes from configuration, not from requests
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return &FileStore{MemoryStore: NewMemoryStore(), path: path}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read tag file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tag file %s: %w", path, err)
	}

	mem := newMemoryStoreFrom(doc.Tags)
	if doc.NextID > mem.nextID {
		mem.nextID = doc.NextID
	}
	return &FileStore{MemoryStore: mem, path: path}, nil
}

// SaveAll implements Store
func (f *FileStore) SaveAll(_ context.Context, collection []tags.Tag) ([]tags.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}

	previous := f.byName
	previousNext := f.nextID
	f.byName = make(map[string]tags.Tag, len(previous)+len(collection))
	for k, v := range previous {
		f.byName[k] = v
	}
	f.upsert(collection)

	if err := f.flush(); err != nil {
		f.byName = previous
		f.nextID = previousNext
		return nil, err
	}
	return f.snapshot(), nil
}

// DeleteAll implements Store
func (f *FileStore) DeleteAll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	previous := f.byName
	f.byName = make(map[string]tags.Tag)
	if err := f.flush(); err != nil {
		f.byName = previous
		return err
	}
	return nil
}

// flush must be called with the write lock held
func (f *FileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create tag directory: %w", err)
	}

	data, err := json.MarshalIndent(fileDocument{NextID: f.nextID, Tags: f.snapshot()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary tag file: %w", err)
	}
	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename tag file: %w", err)
	}
	return nil
}
