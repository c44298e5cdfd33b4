package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtroode/kurisync/internal/service"
	"github.com/dtroode/kurisync/internal/token"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the sync endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := service.NewTokenService(token.NewJWT(opts.cfg.JWT.Secret, opts.cfg.JWT.TTL), opts.logger)
			signed, err := tokens.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator the token is issued to")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
