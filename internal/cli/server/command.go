package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/craigfelt/zerobitone-ticket-service/internal/app"
	"github.com/craigfelt/zerobitone-ticket-service/internal/config"
	"github.com/craigfelt/zerobitone-ticket-service/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the ticket API and, when enabled, the periodic SLA breach sweeper.`,
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.SLA.SweepEnabled {
		if err := a.Sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start sla sweeper: %w", err)
		}
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		listenErr <- a.HTTP.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("fiber listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := a.Sweeper.Stop(); err != nil {
		logger.Warn("stop sla sweeper", zap.Error(err))
	}
	if err := a.HTTP.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
