package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/security"
)

// newTokenCommand mints an API bearer token. Accounts live upstream of this
// service, so operators issue tokens directly.
func newTokenCommand() *cobra.Command {
	var userID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(config.Cfg.JWTSecret) < 32 {
				return errors.New("JWT_SECRET must be at least 32 bytes")
			}
			token, err := security.NewAuthService(config.Cfg.JWTSecret, ttl).GenerateToken(userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
