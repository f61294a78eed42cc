package ctl

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"horas/internal/core"
	"horas/internal/middleware/auth"
)

func (a *app) newTokenCommand() *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API",
		Long: `token signs a token for --user with JWT_SECRET. The role is one of
colaborador, gestor or administrador.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.user == "" {
				return core.ErrMissingUser
			}
			authn := auth.NewAuthenticator(a.opts.Secret())
			if !authn.Enabled() {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := authn.IssueToken(a.user, core.ParseRole(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(core.RoleColaborador), "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}
