package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func newProvider(db *sql.DB) (*goose.Provider, error) {
	// goose expects the files at the root of the FS
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// runMigrations applies all pending schema migrations
func runMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := newProvider(db)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		slog.InfoContext(ctx, "Applied SQLite migration",
			"source", r.Source.Path,
			"duration_ms", r.Duration.Milliseconds())
	}
	return nil
}

// rollbackMigrations rolls back the given number of migrations
func rollbackMigrations(ctx context.Context, db *sql.DB, steps int) error {
	provider, err := newProvider(db)
	if err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		result, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		if result == nil {
			break
		}
		slog.InfoContext(ctx, "Rolled back SQLite migration", "source", result.Source.Path)
	}
	return nil
}
