// Package sqlite provides a store.Store backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/sotags/sotags-api/internal/otel"
	"github.com/sotags/sotags-api/internal/store"
	"github.com/sotags/sotags-api/internal/tags"
)

const (
	sqlReadAll = `SELECT id, name, count, share_percent FROM tags ORDER BY id`
	sqlUpsert  = `INSERT INTO tags (name, count, share_percent) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET count = excluded.count, share_percent = excluded.share_percent`
	sqlDeleteAll = `DELETE FROM tags`
	sqlCount     = `SELECT COUNT(*) FROM tags`
)

// Store implements store.Store on SQLite
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

var _ store.Store = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithTracer sets the tracer used for store spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		s.tracer = tracer
	}
}

func openDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every connection of the pool
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	// Sole writer
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	return db, nil
}

// Open opens the database at dbPath and applies pending migrations
func Open(ctx context.Context, dbPath string, opts ...Option) (*Store, error) {
	db, err := openDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}

	slog.DebugContext(ctx, "SQLite store opened", "path", dbPath)
	return s, nil
}

// MigrateDown rolls back the given number of migrations on the database at dbPath
func MigrateDown(ctx context.Context, dbPath string, steps int) error {
	db, err := openDB(ctx, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	return rollbackMigrations(ctx, db, steps)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readAll(ctx context.Context, q queryer) ([]tags.Tag, error) {
	rows, err := q.QueryContext(ctx, sqlReadAll)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make([]tags.Tag, 0)
	for rows.Next() {
		var t tags.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Count, &t.SharePercent); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return out, nil
}

// ReadAll implements store.Store
func (s *Store) ReadAll(ctx context.Context) ([]tags.Tag, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "sqlite.ReadAll")
	defer span.End()

	out, err := readAll(ctx, s.db)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

// SaveAll implements store.Store
func (s *Store) SaveAll(ctx context.Context, collection []tags.Tag) (result []tags.Tag, err error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "sqlite.SaveAll")
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.WarnContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, sqlUpsert)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, t := range collection {
		if _, err := stmt.ExecContext(ctx, t.Name, t.Count, t.SharePercent); err != nil {
			return nil, fmt.Errorf("failed to upsert tag %q: %w", t.Name, err)
		}
	}

	result, err = readAll(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// DeleteAll implements store.Store
func (s *Store) DeleteAll(ctx context.Context) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "sqlite.DeleteAll")
	defer span.End()

	if _, err := s.db.ExecContext(ctx, sqlDeleteAll); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to delete tags: %w", err)
	}
	return nil
}

// Count implements store.Store
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, sqlCount).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tags: %w", err)
	}
	return n, nil
}

// Ping implements store.Store
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close implements store.Store
func (s *Store) Close() error {
	return s.db.Close()
}
