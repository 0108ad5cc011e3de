package cli

import (
	"context"
	"fmt"

	"github.com/phrazzld/taskcore/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			lifetime, _ := cmd.Flags().GetDuration("lifetime")

			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Auth.AuthEnabled() {
				return fmt.Errorf("auth.jwt_secret is not configured; the admin API does not require tokens")
			}
			if lifetime <= 0 {
				lifetime = cfg.Auth.TokenLifetime
			}

			svc, err := auth.NewTokenService(cfg.Auth.JWTSecret, lifetime)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			token, err := svc.GenerateToken(ctx, subject)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().String("subject", "operator", "subject recorded in the token")
	tokenCmd.Flags().Duration("lifetime", 0, "token lifetime (default auth.token_lifetime)")
	return tokenCmd
}
