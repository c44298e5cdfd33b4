package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtroode/kurisync/database"
	"github.com/dtroode/kurisync/internal/repository/orm"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db := opts.cfg.Database

			if db.Driver == "sqlite" {
				store, err := orm.OpenSQLite(db.DSN)
				if err != nil {
					return err
				}
				defer store.Close()
				fmt.Fprintln(cmd.OutOrStdout(), "sqlite schema up to date")
				return nil
			}

			if err := database.Migrate(cmd.Context(), db.DSN); err != nil {
				return err
			}
			version, err := database.Version(cmd.Context(), db.DSN)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "postgres schema at version %d\n", version)
			return nil
		},
	}
}
