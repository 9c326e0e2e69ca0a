package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	tagapp "github.com/sotags/sotags-api/internal/app"
)

func newRefreshCmd() *cobra.Command {
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refetch every tag from the StackExchange API",
		Long: `Clear the configured tag store and fill it again from the StackExchange API,
then exit. Useful from cron jobs when the server runs without a refresh interval.`,
		RunE: runRefresh,
	}

	refreshCmd.Flags().String("config", "", "Path to configuration file (YAML or TOML, required)")
	if err := refreshCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
	return refreshCmd
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	app, err := tagapp.NewTagApp(ctx, tagapp.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer app.Close()

	result, err := app.RefreshTags(ctx)
	if err != nil {
		return fmt.Errorf("tag refresh failed: %w", err)
	}

	slog.Info("Tags refreshed", "count", result.Count, "cycle_id", result.CycleID)
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d tags\n", result.Count)
	return err
}
