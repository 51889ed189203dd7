package sweep

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/craigfelt/zerobitone-ticket-service/internal/app"
	"github.com/craigfelt/zerobitone-ticket-service/internal/config"
	"github.com/craigfelt/zerobitone-ticket-service/internal/observability"
)

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one SLA breach pass",
		Long:  `Flag every open ticket whose resolution deadline has passed, then exit. Uses the same Redis lock as the server's sweeper.`,
		RunE:  run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	flagged, err := a.Sweeper.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "flagged %d tickets\n", flagged)
	return nil
}
