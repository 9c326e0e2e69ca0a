package database

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMigrateURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "postgres://u@h:5432/d?sslmode=disable", want: "pgx5://u@h:5432/d?sslmode=disable"},
		{in: "postgresql://u@h/d", want: "pgx5://u@h/d"},
		{in: "pgx5://u@h/d", want: "pgx5://u@h/d"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, toMigrateURL(tt.in))
		})
	}
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, cleanupFunc := SetupTestDBContainer(t, ctx)
	t.Cleanup(cleanupFunc)

	connString := db.Config().ConnString()

	m, err := GetMigrate(connString)
	require.NoError(t, err)
	defer closeMigrate(m)

	// Count the number of logical migrations
	fnames, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, fnames)

	for i := 1; i <= len(fnames); i++ {
		assert.NoError(t, m.Steps(i))
		assert.NoError(t, m.Steps(-i))
		assert.NoError(t, m.Steps(i))
	}
}

func TestMigrateUpDown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, cleanupFunc := SetupTestDBContainer(t, ctx)
	t.Cleanup(cleanupFunc)

	connString := db.Config().ConnString()

	version, err := MigrateUp(connString)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	// Running again is a no-op
	version, err = MigrateUp(connString)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var exists bool
	require.NoError(t, db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'tags')`).Scan(&exists))
	assert.True(t, exists)

	version, err = MigrateDown(connString, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = MigrateDown(connString, 0)
	require.Error(t, err)
}
