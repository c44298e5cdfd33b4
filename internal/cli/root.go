package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtroode/kurisync/internal/config"
	"github.com/dtroode/kurisync/internal/logger"
)

// BuildInfo is set from ldflags in main.
type BuildInfo struct {
	Version string
	Date    string
	Commit  string
}

// rootOptions carries state shared by all subcommands.
type rootOptions struct {
	envFile string
	build   BuildInfo

	cfg    *config.Config
	logger *logger.Logger
}

// NewRootCommand creates the kurisync command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	opts := &rootOptions{build: build}

	cmd := &cobra.Command{
		Use:   "kurisync",
		Short: "Reconcile ROSCA ledgers with their registry",
		Long: `kurisync mirrors rotating-savings ledgers from an EVM chain and the
participant registry from a spreadsheet into a local store, derives every
participant's round statuses and serves them over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))
	cmd.AddCommand(newVersionCommand(opts))

	return cmd
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Build version: %s\nBuild date: %s\nBuild commit: %s\n",
				opts.build.Version, opts.build.Date, opts.build.Commit)
		},
	}
}
