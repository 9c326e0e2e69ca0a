package coordinator

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/sotags/sotags-api/internal/config"
	"github.com/sotags/sotags-api/internal/status"
	pkgsync "github.com/sotags/sotags-api/internal/sync"
)

// Coordinator manages background fetch cycles
type Coordinator interface {
	// Start runs the startup cycle and the scheduled refresh loop.
	// Blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator and waits for the loop to exit
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	engine           pkgsync.Engine
	refreshOnStartup bool
	interval         time.Duration

	// Lifecycle management
	mu         gosync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a new coordinator driving engine according to cfg
func New(engine pkgsync.Engine, cfg *config.Config) Coordinator {
	return &defaultCoordinator{
		engine:           engine,
		refreshOnStartup: cfg.Sync.RefreshOnStartup,
		interval:         cfg.GetRefreshInterval(),
		done:             make(chan struct{}),
	}
}

// Start begins background coordination
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	slog.Info("Starting background sync coordinator",
		"refresh_on_startup", c.refreshOnStartup,
		"refresh_interval", c.interval)

	if c.refreshOnStartup {
		c.warmUp(coordCtx)
	}

	if c.interval <= 0 {
		<-coordCtx.Done()
		return nil
	}

	ticker := time.NewTicker(nextInterval(c.interval))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.scheduledRefresh(coordCtx)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(nextInterval(c.interval))
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		<-c.done
	}
	return nil
}

// warmUp fills an under-populated cache before the first listing request
func (c *defaultCoordinator) warmUp(ctx context.Context) {
	collection, err := c.engine.EnsureFresh(pkgsync.WithTrigger(ctx, status.TriggerStartup))
	if err != nil {
		slog.Error("Startup sync failed", "error", err)
		return
	}
	slog.Info("Startup sync finished", "tag_count", len(collection))
}

// scheduledRefresh rebuilds the collection; on failure the stored tags stay
// in place and the next tick retries
func (c *defaultCoordinator) scheduledRefresh(ctx context.Context) {
	result, err := c.engine.Rebuild(pkgsync.WithTrigger(ctx, status.TriggerScheduled))
	if err != nil {
		slog.Error("Scheduled refresh failed", "error", err)
		return
	}
	if !result.Success {
		slog.Warn("Scheduled refresh did not persist any tags", "cycle_id", result.CycleID)
		return
	}
	slog.Info("Scheduled refresh finished", "cycle_id", result.CycleID, "tag_count", len(result.Tags))
}
