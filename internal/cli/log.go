package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/4kiu/axiom/internal/logbook"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Energy int
	Tags   []string
	Notes  string
	PlanID string
	At     string
	ID     string
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <identity>",
		Short: "Log today's identity state",
		Long: `Log an identity state for a day.

The identity is one of: overdrive, normal, maintenance, survival, rest.
Each day holds at most one entry; logging a second one fails unless you
pass --id to replace the existing entry.

Example:
  axiom log normal --energy 4 --tags push,upper
  axiom log rest --at 2026-08-29
  axiom log overdrive --id 7d8a... --notes "PR day"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Energy, "energy", 3, "pre-session energy, 1-5")
	cmd.Flags().StringSliceVar(&opts.Tags, "tags", nil, "comma-separated tags")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&opts.PlanID, "plan", "", "plan id to reference")
	cmd.Flags().StringVar(&opts.At, "at", "", "day or instant to log (2006-01-02 or RFC3339), default now")
	cmd.Flags().StringVar(&opts.ID, "id", "", "entry id to replace")

	return cmd
}

func runLog(cmd *cobra.Command, opts *LogOptions, identityName string) error {
	identity, err := logbook.ParseIdentity(strings.ToLower(identityName))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid identity", err)
	}

	a, err := openApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	at := opts.now()
	if opts.At != "" {
		at, err = parseWhen(opts.At, a.store.Location())
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --at value", err)
		}
	}

	a.importBestEffort(cmd.Context())

	entry, err := a.store.UpsertEntry(logbook.Entry{
		ID:        opts.ID,
		Timestamp: at.UnixMilli(),
		Identity:  identity,
		Energy:    opts.Energy,
		Tags:      opts.Tags,
		Notes:     opts.Notes,
		PlanID:    opts.PlanID,
	})
	if err != nil {
		if logbook.IsValidation(err) {
			return WrapExitError(ExitFailure, "entry rejected", err)
		}
		return WrapExitError(ExitCommandError, "save entry", err)
	}

	a.flush(cmd.Context())

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.IsJSON() {
		return formatter.Success(entry)
	}
	day := entry.Day(a.store.Location()).Format("2006-01-02")
	return formatter.Success(fmt.Sprintf("Logged %s for %s (id %s)", entry.Identity, day, entry.ID))
}

// parseWhen accepts a bare day or a full instant. A bare day is interpreted
// in the store's calendar timezone and lands at noon so day math never shifts
// it across midnight.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("want 2006-01-02 or RFC3339, got %q", s)
}

// NewRmCommand creates the rm command.
func NewRmCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rm <entry-id>",
		Short:         "Delete an entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			a.importBestEffort(cmd.Context())

			if err := a.store.DeleteEntry(args[0]); err != nil {
				return WrapExitError(ExitFailure, "delete entry", err)
			}
			a.flush(cmd.Context())

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.IsJSON() {
				return formatter.Success(map[string]string{"deleted": args[0]})
			}
			return formatter.Success("Deleted " + args[0])
		},
	}
	return cmd
}
