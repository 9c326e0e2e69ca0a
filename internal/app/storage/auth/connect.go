package auth

import (
	"context"
	"fmt"

	"github.com/sotags/sotags-api/internal/config"
)

// MigrationConnectionString builds the URL used by the migrate command.
// Any dynamic token is embedded as the password because golang-migrate opens
// its own connection. Without dynamic auth the URL carries no password so
// pgpass still applies.
func MigrationConnectionString(ctx context.Context, cfg *config.DatabaseConfig) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("database configuration is required")
	}

	user := cfg.GetMigrationUser()
	token, err := ResolveAuthToken(ctx, cfg, user)
	if err != nil {
		return "", fmt.Errorf("failed to resolve auth token for migration user: %w", err)
	}

	return cfg.BuildConnectionStringWithAuth(user, token), nil
}
