package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/tags"
)

const (
	// DefaultTTL bounds how long a cached collection is served. A copy
	// remembered by a read that raced a refresh on another replica stays
	// visible for at most this long.
	DefaultTTL = time.Minute

	collectionKey = "tags:all"
)

// Store wraps a store.Store and serves ReadAll from Redis when possible.
// Writes go to the wrapped store first and then refresh the cached copy.
// Cache failures are logged and never fail an operation.
type Store struct {
	inner  store.Store
	client *Client
	key    string
	ttl    time.Duration
}

var _ store.Store = (*Store)(nil)

// NewStore wraps inner. keyPrefix namespaces the cache key; ttl <= 0 uses DefaultTTL.
func NewStore(inner store.Store, client *Client, keyPrefix string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		inner:  inner,
		client: client,
		key:    keyPrefix + collectionKey,
		ttl:    ttl,
	}
}

func (s *Store) cached(ctx context.Context) ([]tags.Tag, bool) {
	var collection []tags.Tag
	err := s.client.Get(ctx, s.key, &collection)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			slog.WarnContext(ctx, "Failed to read tag cache", "error", err)
		}
		return nil, false
	}
	if collection == nil {
		collection = []tags.Tag{}
	}
	return collection, true
}

func (s *Store) remember(ctx context.Context, collection []tags.Tag) {
	if err := s.client.Set(ctx, s.key, collection, s.ttl); err != nil {
		slog.WarnContext(ctx, "Failed to update tag cache", "error", err)
	}
}

func (s *Store) forget(ctx context.Context) {
	if err := s.client.Delete(ctx, s.key); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate tag cache", "error", err)
	}
}

// ReadAll implements store.Store
func (s *Store) ReadAll(ctx context.Context) ([]tags.Tag, error) {
	if collection, ok := s.cached(ctx); ok {
		return collection, nil
	}

	collection, err := s.inner.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, collection)
	return collection, nil
}

// SaveAll implements store.Store
func (s *Store) SaveAll(ctx context.Context, collection []tags.Tag) ([]tags.Tag, error) {
	saved, err := s.inner.SaveAll(ctx, collection)
	if err != nil {
		// The backend may have partially applied the write
		s.forget(ctx)
		return nil, err
	}
	s.remember(ctx, saved)
	return saved, nil
}

// DeleteAll implements store.Store
func (s *Store) DeleteAll(ctx context.Context) error {
	err := s.inner.DeleteAll(ctx)
	s.forget(ctx)
	return err
}

// Count implements store.Store
func (s *Store) Count(ctx context.Context) (int, error) {
	if collection, ok := s.cached(ctx); ok {
		return len(collection), nil
	}
	return s.inner.Count(ctx)
}

// Ping implements store.Store. An unreachable cache only degrades reads.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "Tag cache unreachable", "error", err)
	}
	return s.inner.Ping(ctx)
}

// Close implements store.Store
func (s *Store) Close() error {
	return errors.Join(s.client.Close(), s.inner.Close())
}
