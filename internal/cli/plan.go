package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/4kiu/axiom/internal/logbook"
)

// NewPlanCommand creates the plan command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage workout plans",
	}
	cmd.AddCommand(newPlanAddCommand(rootOpts))
	cmd.AddCommand(newPlanListCommand(rootOpts))
	cmd.AddCommand(newPlanRmCommand(rootOpts))
	return cmd
}

func newPlanAddCommand(rootOpts *RootOptions) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "Create a plan",
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

			plan, err := a.store.UpsertPlan(logbook.Plan{
				Name:        args[0],
				Description: description,
			})
			if err != nil {
				if logbook.IsValidation(err) {
					return WrapExitError(ExitFailure, "plan rejected", err)
				}
				return WrapExitError(ExitCommandError, "save plan", err)
			}
			a.flush(cmd.Context())

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.IsJSON() {
				return formatter.Success(plan)
			}
			return formatter.Success(fmt.Sprintf("Created plan %q (id %s)", plan.Name, plan.ID))
		},
	}

	cmd.Flags().StringVar(&description, "desc", "", "plan description")
	return cmd
}

func newPlanListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List plans",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			_, plans := a.store.All()

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.IsJSON() {
				return formatter.Success(plans)
			}
			if len(plans) == 0 {
				return formatter.Success("No plans.")
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"ID", "Name", "Exercises", "Created"})
			for _, p := range plans {
				tw.AppendRow(table.Row{
					p.ID,
					p.Name,
					len(p.Exercises),
					time.UnixMilli(p.CreatedAt).In(a.store.Location()).Format("2006-01-02"),
				})
			}
			tw.Render()
			return nil
		},
	}
}

func newPlanRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <plan-id>",
		Short:         "Delete a plan",
		Long:          "Delete a plan. Entries that reference it keep their reference; it simply no longer resolves.",
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

			if err := a.store.DeletePlan(args[0]); err != nil {
				return WrapExitError(ExitFailure, "delete plan", err)
			}
			a.flush(cmd.Context())

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.IsJSON() {
				return formatter.Success(map[string]string{"deleted": args[0]})
			}
			return formatter.Success("Deleted plan " + args[0])
		},
	}
}
