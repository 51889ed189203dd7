package token

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/craigfelt/zerobitone-ticket-service/internal/auth"
	"github.com/craigfelt/zerobitone-ticket-service/internal/config"
	"github.com/craigfelt/zerobitone-ticket-service/internal/domain"
)

var (
	userID      int64
	role        string
	permissions []string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token",
		Long:  `Sign a bearer token with AUTH_JWT_SECRET for the given user. Intended for local development and smoke tests.`,
		RunE:  run,
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "User id carried in the token (required)")
	cmd.Flags().StringVar(&role, "role", domain.RoleUser, "Role claim (user or admin)")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "Extra permission claims")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	signed, expiresAt, err := tm.GenerateToken(domain.Actor{ID: userID, Role: role, Permissions: permissions})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), signed)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
