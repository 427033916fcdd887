package cli

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/4kiu/axiom/internal/logbook"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Show recent entries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, rootOpts, days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 14, "how many days back to show")
	return cmd
}

func runHistory(cmd *cobra.Command, opts *RootOptions, days int) error {
	if days <= 0 {
		return NewExitError(ExitCommandError, "--days must be positive")
	}

	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.store.Location()
	cutoff := logbook.DayOf(opts.now(), loc).AddDate(0, 0, -(days - 1))

	entries, _ := a.store.All()
	var recent []logbook.Entry
	for _, e := range entries {
		if !e.Day(loc).Before(cutoff) {
			recent = append(recent, e)
		}
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.IsJSON() {
		return formatter.Success(recent)
	}
	if len(recent) == 0 {
		return formatter.Success("No entries.")
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Date", "Identity", "Energy", "Tags", "Notes"})
	// Newest first for reading.
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		tw.AppendRow(table.Row{
			e.Time().In(loc).Format("2006-01-02"),
			e.Identity.String(),
			e.Energy,
			strings.Join(e.Tags, ","),
			e.Notes,
		})
	}
	tw.Render()
	return nil
}
