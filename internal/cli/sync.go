package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dtroode/kurisync/internal/model"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	jobs := make([]string, 0, len(model.Jobs))
	for _, j := range model.Jobs {
		jobs = append(jobs, string(j))
	}

	return &cobra.Command{
		Use:       "sync <" + strings.Join(jobs, "|") + ">",
		Short:     "Run one synchronization job and print its report",
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := model.ParseJob(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.sync.Run(cmd.Context(), job)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
