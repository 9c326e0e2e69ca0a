package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sotags/sotags-api/database"
	"github.com/sotags/sotags-api/internal/app/storage/auth"
	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/store/sqlite"
)

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Long: `Apply all pending migrations to bring the tag store schema up to date.
For the database storage type the migration user from the config file is used.`,
		RunE: runMigrateUp,
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return migratePostgresUp(ctx, cmd, cfg)
	case config.StorageTypeSQLite:
		return migrateSQLiteUp(ctx, cmd, cfg)
	default:
		return fmt.Errorf("storage type %s has no schema to migrate", cfg.GetStorageType())
	}
}

func migratePostgresUp(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}

	ok, err := confirm(cmd, fmt.Sprintf("About to apply migrations to %s:%d/%s as user %s. Continue?",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database, cfg.Database.GetMigrationUser()))
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	connString, err := auth.MigrationConnectionString(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to get migration connection string: %w", err)
	}

	slog.Info("Applying database migrations...")
	version, err := database.MigrateUp(connString)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Migrations applied successfully", "version", version)
	return nil
}

func migrateSQLiteUp(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	path := cfg.GetSQLitePath()
	ok, err := confirm(cmd, fmt.Sprintf("About to apply migrations to %s. Continue?", path))
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	// Open applies every pending migration
	st, err := sqlite.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	slog.Info("Migrations applied successfully", "path", path)
	return nil
}
