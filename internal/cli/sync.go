package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull the latest remote state, then push the local snapshot",
		Long: `Pull the newest remote manifest and adopt it if newer, then upload
the local snapshot as a fresh manifest. Requires a linked account.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.scheduler == nil {
				return NewExitError(ExitCommandError, "no linked account; run 'axiom link' first")
			}

			if err := a.scheduler.ImportLatest(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "pull failed", err)
			}
			if err := a.scheduler.PushNow(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "push failed", err)
			}

			entries, plans := a.store.All()
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.IsJSON() {
				return formatter.Success(map[string]int{"entries": len(entries), "plans": len(plans)})
			}
			return formatter.Success(fmt.Sprintf("Synced %d entries, %d plans", len(entries), len(plans)))
		},
	}
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Pull the latest remote state without pushing",
		Long: `Fetch the newest remote manifest and replace the local collections
with it when it is newer than the last known sync. The local state is
left untouched when the remote is older or absent.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.scheduler == nil {
				return NewExitError(ExitCommandError, "no linked account; run 'axiom link' first")
			}

			if err := a.scheduler.ImportLatest(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "import failed", err)
			}

			entries, plans := a.store.All()
			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.IsJSON() {
				return formatter.Success(map[string]int{"entries": len(entries), "plans": len(plans)})
			}
			return formatter.Success(fmt.Sprintf("Local state: %d entries, %d plans", len(entries), len(plans)))
		},
	}
}
