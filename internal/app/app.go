// Package app provides application lifecycle management for the tag API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/service"
)

// TagApp encapsulates all components needed to run the tag API server
type TagApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start starts the sync coordinator in the background and then the HTTP server.
// It blocks until the HTTP server stops or fails.
func (app *TagApp) Start() error {
	go func() {
		if err := app.components.SyncCoordinator.Start(app.ctx); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
	}()

	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop stops the sync coordinator, releases storage and shuts the HTTP
// server down within timeout
func (app *TagApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := app.httpServer.Shutdown(shutdownCtx)

	// storage goes last so in-flight requests can finish
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// RefreshTags runs one full refresh without serving HTTP
func (app *TagApp) RefreshTags(ctx context.Context) (*service.RefreshResult, error) {
	return app.components.TagService.RefreshTags(ctx)
}

// Close releases storage for an app that was never started
func (app *TagApp) Close() {
	if app.cancelFunc != nil {
		app.cancelFunc()
	}
}

// GetConfig returns the application configuration
func (app *TagApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *TagApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
