package persistence

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		body, err := fs.ReadFile(migrationsFS, name)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", name)
		assert.Contains(t, string(body), "-- +goose Down", name)
	}
}

func TestInitMigration_SeedsTerminalStatuses(t *testing.T) {
	body, err := fs.ReadFile(migrationsFS, "migrations/00001_init.sql")
	require.NoError(t, err)

	sql := string(body)
	assert.Contains(t, sql, "(4, 'Resolved', '#10B981', TRUE)")
	assert.Contains(t, sql, "(5, 'Closed', '#6B7280', TRUE)")
	assert.True(t, strings.Contains(sql, "ticket_sequences"))
}

func TestMigrationCommands_RequireDatabase(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, RunMigrations(ctx, nil, zap.NewNop()))
	assert.ErrorIs(t, RollbackMigrations(ctx, nil, 1, zap.NewNop()), ErrNoDatabase)
	_, err := MigrationStatus(ctx, nil)
	assert.ErrorIs(t, err, ErrNoDatabase)
}
