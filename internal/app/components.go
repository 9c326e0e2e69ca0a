package app

import (
	"github.com/sotags/sotags-api/internal/service"
	"github.com/sotags/sotags-api/internal/sync/coordinator"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator runs the startup warm-up and scheduled refreshes
	SyncCoordinator coordinator.Coordinator

	// TagService serves the tag API
	TagService service.TagService
}
