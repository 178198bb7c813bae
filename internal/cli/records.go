package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dirmail/dirmail/internal/config"
	"github.com/dirmail/dirmail/internal/ledger"
)

// NewRecordsCommand creates the records command, a read-only view of
// the contact ledger.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List every contacted identity and its last outcome",
		Long: `List the contact ledger: one row per identity ever attempted, with
its current status. Reads the ledger without taking the run lock, so it
is safe alongside an active run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRecords(rootOpts, cmd)
		},
	}
}

func listRecords(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	recs, err := ledger.Snapshot(cfg.DataDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ledger", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if out.JSON() {
		return out.Success(recs)
	}

	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No contacts recorded yet.")
		return nil
	}

	identities := make([]string, 0, len(recs))
	for id := range recs {
		identities = append(identities, id)
	}
	sort.Strings(identities)

	w := cmd.OutOrStdout()
	for _, id := range identities {
		fmt.Fprintln(w, recordLine(recs[id]))
	}
	fmt.Fprintf(w, "\n%d contact(s) recorded\n", len(recs))
	return nil
}

func recordLine(rec ledger.Record) string {
	tag := sentStyle.Render("sent")
	if rec.Status == ledger.StatusFailed {
		tag = failedStyle.Render("fail")
	}
	parts := []string{tag, rec.Identity}
	if rec.DisplayName != "" {
		parts = append(parts, rec.DisplayName)
	}
	parts = append(parts, labelStyle.Render(rec.UpdatedAt.Format("2006-01-02 15:04")))
	return strings.Join(parts, "  ")
}
