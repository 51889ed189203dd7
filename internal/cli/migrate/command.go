package migrate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/config"
	"github.com/craigfelt/zerobitone-ticket-service/internal/observability"
	"github.com/craigfelt/zerobitone-ticket-service/internal/persistence"
)

var steps int

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply, roll back or inspect the embedded goose migrations against POSTGRES_DSN.`,
	}

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE:  runStatus,
	}
}

type env struct {
	logger *zap.Logger
	pg     *persistence.Postgres
}

func (e *env) close() {
	e.pg.Close()
	_ = e.logger.Sync()
}

func initEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	if !pg.Enabled() {
		return nil, persistence.ErrNoDatabase
	}
	return &env{logger: logger, pg: pg}, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	e, err := initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	return persistence.RunMigrations(cmd.Context(), e.pg.Pool, e.logger)
}

func runDown(cmd *cobra.Command, args []string) error {
	if steps < 1 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}

	e, err := initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	return persistence.RollbackMigrations(cmd.Context(), e.pg.Pool, steps, e.logger)
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, err := initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	version, err := persistence.MigrationStatus(cmd.Context(), e.pg.Pool)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "current version: %d\n", version)
	return nil
}
