// Package postgres provides a store.Store backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/sotags/sotags-api/internal/otel"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/tags"
)

const (
	sqlReadAll = `SELECT id, name, count, share_percent FROM tags ORDER BY id`
	sqlUpsert  = `INSERT INTO tags (name, count, share_percent) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET count = EXCLUDED.count, share_percent = EXCLUDED.share_percent`
	sqlDeleteAll = `DELETE FROM tags`
	sqlCount     = `SELECT COUNT(*) FROM tags`
)

// options holds configuration options for the postgres store
type options struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// Option is a functional option for configuring the postgres store
type Option func(*options) error

// WithConnectionPool sets the pgx pool. The store takes ownership and closes it on Close.
func WithConnectionPool(pool *pgxpool.Pool) Option {
	return func(o *options) error {
		if pool == nil {
			return fmt.Errorf("pgx pool is required")
		}
		o.pool = pool
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the store.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// Store implements store.Store on PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ store.Store = (*Store)(nil)

// New creates a postgres store with the given options
func New(opts ...Option) (*Store, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}

	return &Store{
		pool:   o.pool,
		tracer: o.tracer,
	}, nil
}

func readAll(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}) ([]tags.Tag, error) {
	rows, err := q.Query(ctx, sqlReadAll)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tags.Tag, error) {
		var t tags.Tag
		err := row.Scan(&t.ID, &t.Name, &t.Count, &t.SharePercent)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tags: %w", err)
	}
	if out == nil {
		out = []tags.Tag{}
	}
	return out, nil
}

// ReadAll implements store.Store
func (s *Store) ReadAll(ctx context.Context) ([]tags.Tag, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "postgres.ReadAll")
	defer span.End()

	out, err := readAll(ctx, s.pool)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

// SaveAll implements store.Store. The upserts are sent as one batch.
func (s *Store) SaveAll(ctx context.Context, collection []tags.Tag) (result []tags.Tag, err error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "postgres.SaveAll")
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
	}()

	if len(collection) > 0 {
		batch := &pgx.Batch{}
		for _, t := range collection {
			batch.Queue(sqlUpsert, t.Name, t.Count, t.SharePercent)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to upsert tags: %w", err)
		}
	}

	result, err = readAll(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// DeleteAll implements store.Store
func (s *Store) DeleteAll(ctx context.Context) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "postgres.DeleteAll")
	defer span.End()

	if _, err := s.pool.Exec(ctx, sqlDeleteAll); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to delete tags: %w", err)
	}
	return nil
}

// Count implements store.Store
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, sqlCount).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tags: %w", err)
	}
	return n, nil
}

// Ping implements store.Store
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close implements store.Store
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
