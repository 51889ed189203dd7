package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/craigfelt/zerobitone-ticket-service/internal/cli/migrate"
	"github.com/craigfelt/zerobitone-ticket-service/internal/cli/server"
	"github.com/craigfelt/zerobitone-ticket-service/internal/cli/sweep"
	"github.com/craigfelt/zerobitone-ticket-service/internal/cli/token"
)

func main() {
	serve := server.NewCommand()

	rootCmd := &cobra.Command{
		Use:          "ticket-service",
		Short:        "Support ticket service",
		Long:         `Ticket lifecycle API with SLA tracking. Runs the HTTP server when no subcommand is given.`,
		RunE:         serve.RunE,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		serve,
		migrate.NewCommand(),
		sweep.NewCommand(),
		token.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
