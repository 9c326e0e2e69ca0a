// Package auth resolves dynamic credentials for the PostgreSQL tag store.
package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sotags/sotags-api/internal/app/storage/auth/aws"
	"github.com/sotags/sotags-api/internal/config"
)

var errNoAuthMethod = fmt.Errorf(
	"dynamic auth is configured but no supported auth method (e.g., awsRdsIam) is specified")

// ResolveAuthToken returns a one-off token for user, or an empty string when
// dynamic authentication is not configured. Short-lived connections such as
// migrations use it in place of a BeforeConnect hook.
func ResolveAuthToken(ctx context.Context, cfg *config.DatabaseConfig, user string) (string, error) {
	if cfg == nil {
		return "", fmt.Errorf("database configuration is required")
	}
	if cfg.DynamicAuth == nil {
		return "", nil
	}
	if cfg.DynamicAuth.AWSRDSIAM != nil {
		return aws.NewToken(ctx, cfg, user)
	}
	return "", errNoAuthMethod
}

// NewDynamicAuth returns a pgx BeforeConnect hook for the configured method
func NewDynamicAuth(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	user string,
) (func(context.Context, *pgx.ConnConfig) error, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if cfg.DynamicAuth == nil {
		return nil, fmt.Errorf("dynamic authentication is not configured")
	}
	if cfg.DynamicAuth.AWSRDSIAM != nil {
		return aws.PgxAuthFunc(ctx, cfg, user)
	}
	return nil, errNoAuthMethod
}
