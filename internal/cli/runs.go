package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dirmail/dirmail/internal/config"
	"github.com/dirmail/dirmail/internal/ledger"
)

// NewRunsCommand creates the runs command, listing the audit log of
// past runs.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "runs",
		Short:         "List past runs with their outcomes and counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(rootOpts, cmd)
		},
	}
}

func listRuns(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	sums, err := ledger.NewRunLog(cfg.DataDir).List()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run log", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if out.JSON() {
		return out.Success(sums)
	}

	if len(sums) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	w := cmd.OutOrStdout()
	for _, s := range sums {
		fmt.Fprintf(w, "%s  %s  %s  sent=%d failed=%d skipped=%d  %q\n",
			labelStyle.Render(s.StartedAt.Format("2006-01-02 15:04")),
			s.RunID,
			s.Outcome,
			s.Counts.Sent,
			s.Counts.Failed,
			s.Counts.Skipped,
			s.Query,
		)
	}
	return nil
}
