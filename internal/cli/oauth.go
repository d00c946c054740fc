package cli

import (
	"context"
	"fmt"

	"quiz-gate-service/internal/config"
	"quiz-gate-service/internal/infra/memory"
	"quiz-gate-service/internal/infra/sheets"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewOAuthCmd runs the Google consent flow from the terminal.
func NewOAuthCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oauth",
		Short: "Authorise the Google Sheets account",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "url",
		Short: "Print the consent URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			auth, cleanup, err := newAuthenticator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			fmt.Fprintln(cmd.OutOrStdout(), auth.AuthURL(uuid.NewString()))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code and store the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			auth, cleanup, err := newAuthenticator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			tok, err := auth.Exchange(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if tok.RefreshToken == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "token stored (no refresh token issued)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token stored; refresh token: %s\n", tok.RefreshToken)
			return nil
		},
	})
	return cmd
}

// newAuthenticator builds the Sheets authenticator with the Redis token store
// when Redis is configured.
func newAuthenticator(ctx context.Context, cfg config.Config) (*sheets.Authenticator, func(), error) {
	authCfg, err := sheetsAuthConfig(cfg.Sheets)
	if err != nil {
		return nil, nil, err
	}
	client := newRedisClient(cfg)
	if client == nil {
		return sheets.NewAuthenticator(authCfg, memory.NewTokenStore()), func() {}, nil
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return sheets.NewAuthenticator(authCfg, redisTokenStore(client)), func() { client.Close() }, nil
}
