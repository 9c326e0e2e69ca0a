package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/sotags/sotags-api/database"
	"github.com/sotags/sotags-api/internal/app/storage/auth"
	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/store/sqlite"
)

func newMigrateDownCmd() *cobra.Command {
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Migrate the tag store schema down",
		Long: `Migrate the tag store schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  sotags-api migrate down --config config.yaml --num-steps 1 --yes`,
		RunE: runMigrateDown,
	}
	downCmd.Flags().UintP("num-steps", "n", 1, "Number of steps to migrate down")
	return downCmd
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps == 0 {
		return fmt.Errorf("num-steps must be at least 1")
	}
	if numSteps > math.MaxInt32 {
		return fmt.Errorf("number of steps exceeds maximum allowed value")
	}
	steps := int(numSteps) // #nosec G115 -- overflow checked above

	storageType := cfg.GetStorageType()
	if storageType != config.StorageTypeDatabase && storageType != config.StorageTypeSQLite {
		return fmt.Errorf("storage type %s has no schema to migrate", storageType)
	}

	ok, err := confirm(cmd, fmt.Sprintf(
		"WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", steps))
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled")
		return fmt.Errorf("migration cancelled by user")
	}

	slog.Info("Migrating down", "steps", steps, "storage", storageType)
	if storageType == config.StorageTypeSQLite {
		if err := sqlite.MigrateDown(ctx, cfg.GetSQLitePath(), steps); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("Migration completed successfully")
		return nil
	}

	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	connString, err := auth.MigrationConnectionString(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to get migration connection string: %w", err)
	}

	version, err := database.MigrateDown(connString, steps)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("Migration completed successfully", "version", version)
	return nil
}
