package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotags/sotags-api/internal/config"
)

func TestResolveAuthToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       *config.DatabaseConfig
		wantToken string
		errMsg    string
	}{
		{
			name:   "nil config",
			errMsg: "database configuration is required",
		},
		{
			name: "no dynamic auth returns empty token",
			cfg: &config.DatabaseConfig{
				Host: "localhost", Port: 5432, User: "sotags", Database: "sotags",
			},
		},
		{
			name: "no supported method",
			cfg: &config.DatabaseConfig{
				Host: "localhost", Port: 5432, User: "sotags", Database: "sotags",
				DynamicAuth: &config.DynamicAuthConfig{},
			},
			errMsg: "no supported auth method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := ResolveAuthToken(context.Background(), tt.cfg, "sotags")
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestNewDynamicAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cfg    *config.DatabaseConfig
		errMsg string
	}{
		{name: "nil config", errMsg: "database configuration is required"},
		{
			name:   "not configured",
			cfg:    &config.DatabaseConfig{Host: "localhost", Port: 5432},
			errMsg: "dynamic authentication is not configured",
		},
		{
			name: "no supported method",
			cfg: &config.DatabaseConfig{
				Host: "localhost", Port: 5432,
				DynamicAuth: &config.DynamicAuthConfig{},
			},
			errMsg: "no supported auth method",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fn, err := NewDynamicAuth(context.Background(), tt.cfg, "sotags")
			require.Error(t, err)
			assert.Nil(t, fn)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMigrationConnectionString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         *config.DatabaseConfig
		wantConnStr string
		errMsg      string
	}{
		{
			name:   "nil config",
			errMsg: "database configuration is required",
		},
		{
			name: "application user when no migration user is set",
			cfg: &config.DatabaseConfig{
				Host: "localhost", Port: 5432, User: "sotags", Database: "sotags",
			},
			wantConnStr: "postgres://sotags@localhost:5432/sotags?sslmode=require",
		},
		{
			name: "separate migration user and sslmode",
			cfg: &config.DatabaseConfig{
				Host:          "db.example.com",
				Port:          5433,
				User:          "sotags",
				MigrationUser: "sotags_owner",
				Database:      "tags",
				SSLMode:       "verify-full",
			},
			wantConnStr: "postgres://sotags_owner@db.example.com:5433/tags?sslmode=verify-full",
		},
		{
			name: "unsupported dynamic auth",
			cfg: &config.DatabaseConfig{
				Host: "localhost", Port: 5432, User: "sotags", Database: "sotags",
				DynamicAuth: &config.DynamicAuthConfig{},
			},
			errMsg: "failed to resolve auth token for migration user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			connStr, err := MigrationConnectionString(context.Background(), tt.cfg)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConnStr, connStr)
		})
	}
}
