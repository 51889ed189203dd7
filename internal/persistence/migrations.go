package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// ErrNoDatabase is returned by migration commands when no DSN is configured.
var ErrNoDatabase = errors.New("no postgres pool available")

// openMigrator prepares goose against the embedded scripts and returns a
// database/sql handle sharing the pool's configuration.
func openMigrator(pool *pgxpool.Pool) (*sql.DB, error) {
	if pool == nil {
		return nil, ErrNoDatabase
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return stdlib.OpenDBFromPool(pool), nil
}

// RunMigrations applies all pending migrations.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	db, err := openMigrator(pool)
	if err != nil {
		return err
	}
	defer db.Close()

	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	final, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	logger.Info("migrations applied", zap.Int64("from_version", current), zap.Int64("to_version", final))
	return nil
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(ctx context.Context, pool *pgxpool.Pool, steps int, logger *zap.Logger) error {
	db, err := openMigrator(pool)
	if err != nil {
		return err
	}
	defer db.Close()

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("rollback migration: %w", err)
		}
	}
	logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// MigrationStatus prints the state of every migration through goose's logger
// and returns the current schema version.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	db, err := openMigrator(pool)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if err := goose.StatusContext(ctx, db, migrationsDir); err != nil {
		return 0, fmt.Errorf("migration status: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db)
}
