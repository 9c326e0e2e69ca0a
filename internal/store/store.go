// Package store defines persistence for the cached tag collection and
// provides the in-memory and JSON file backends.
//
// Every backend keeps the same contract: names are unique, identifiers are
// assigned on first insert and never change, reads are ordered by identifier
// and each mutation is applied atomically.
package store

import (
	"context"
	"errors"

	"github.com/sotags/sotags-api/internal/tags"
)

// ErrClosed is returned by operations on a store that has been closed
var ErrClosed = errors.New("store is closed")

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// Store persists the tag collection
type Store interface {
	// ReadAll returns every stored tag ordered by ID. The result is never nil.
	ReadAll(ctx context.Context) ([]tags.Tag, error)

	// SaveAll upserts the given tags by name in one transaction. Existing rows
	// keep their ID and get the new count and share; new names get a fresh ID.
	// It returns the full stored collection after commit, ordered by ID.
	SaveAll(ctx context.Context, collection []tags.Tag) ([]tags.Tag, error)

	// DeleteAll removes every tag in one transaction
	DeleteAll(ctx context.Context) error

	// Count returns the number of stored tags
	Count(ctx context.Context) (int, error)

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error

	// Close releases resources held by the store
	Close() error
}
