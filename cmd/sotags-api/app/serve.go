package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tagapp "github.com/sotags/sotags-api/internal/app"
	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/otel"
	"github.com/sotags/sotags-api/internal/telemetry"
	"github.com/sotags/sotags-api/internal/versions"
)

const (
	defaultGracefulTimeout = 30 * time.Second
	telemetryShutdownLimit = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tag API server",
		Long: `Start the tag API server.

The server requires a configuration file (--config, YAML or TOML) that specifies:
- The upstream StackExchange site and fetch limits
- The tag store (memory, file, sqlite or database) and optional Redis cache
- Sync behavior (startup fill, scheduled refresh) and telemetry

See examples/ directory for sample configurations.`,
		RunE: runServe,
	}

	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML or TOML, required)")
	serveCmd.Flags().Duration("request-timeout", config.DefaultSyncTimeout, "Maximum duration of one HTTP request")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}

	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	requestTimeout, err := cmd.Flags().GetDuration("request-timeout")
	if err != nil {
		return fmt.Errorf("failed to get request-timeout flag: %w", err)
	}

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(withVersion(cfg.Telemetry)),
		telemetry.WithResourceAttributes(
			otel.AttrStorageType.String(cfg.GetStorageType()),
			otel.AttrUpstreamSite.String(cfg.Upstream.GetSite()),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownLimit)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	opts := []tagapp.TagAppOptions{
		tagapp.WithConfig(cfg),
		tagapp.WithAddress(viper.GetString("address")),
		tagapp.WithRequestTimeout(requestTimeout),
	}
	if cfg.Telemetry != nil && cfg.Telemetry.Enabled {
		opts = append(opts,
			tagapp.WithMeterProvider(tel.MeterProvider()),
			tagapp.WithTracerProvider(tel.TracerProvider()),
		)
		if handler := tel.MetricsHandler(); handler != nil {
			opts = append(opts, tagapp.WithMetricsHandler(handler))
		}
	}

	app, err := tagapp.NewTagApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case err := <-errChan:
		app.Close()
		return err
	case <-ctx.Done():
	}

	return app.Stop(defaultGracefulTimeout)
}

// withVersion reports the build version as the service version unless one is configured
func withVersion(cfg *telemetry.Config) *telemetry.Config {
	if cfg == nil || cfg.ServiceVersion != "" {
		return cfg
	}
	withVersion := *cfg
	withVersion.ServiceVersion = versions.Version
	return &withVersion
}
