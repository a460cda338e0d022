// Command devtoken issues access tokens signed with the server's configured
// key, for local runs against an instance without an identity provider.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	jwttoken "casevault/internal/jwt_token"
	"casevault/internal/platform/config"
	"casevault/pkg/domain"
)

func main() {
	if err := newCommand(config.FromEnv().Auth).Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand(cfg config.AuthConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devtoken <actor-id>",
		Short: "Issue a casevault access token for local testing",
		Long: `Issue an HS256 access token using JWT_SIGNING_KEY, JWT_ISSUER and
JWT_AUDIENCE from the environment, the same settings the server validates with.

Examples:
  # Admin token for actor 7, valid for one hour
  devtoken 7

  # Viewer token valid for ten minutes
  devtoken 9 --role viewer --ttl 10m`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := domain.ParseActorID(args[0])
			if err != nil {
				return err
			}
			rawRole, _ := cmd.Flags().GetString("role")
			role, err := domain.ParseRole(rawRole)
			if err != nil {
				return err
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive, got %s", ttl)
			}

			svc := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
			token, err := svc.GenerateAccessToken(actorID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("role", string(domain.RoleAdmin), "Role claim: admin, investigator or viewer")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")

	return cmd
}
