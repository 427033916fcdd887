package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/4kiu/axiom/internal/continuity"
)

type pointsData struct {
	WeekOf           string `json:"week_of"`
	Base             int    `json:"base"`
	OverdriveCount   int    `json:"overdrive_count"`
	OverdrivePoints  int    `json:"overdrive_points"`
	EnergyBonus      int    `json:"energy_bonus"`
	LongestNormalRun int    `json:"longest_normal_run"`
	RunBonus         int    `json:"run_bonus"`
	Total            int    `json:"total"`
}

// NewPointsCommand creates the points command.
func NewPointsCommand(rootOpts *RootOptions) *cobra.Command {
	var weeksAgo int

	cmd := &cobra.Command{
		Use:           "points",
		Short:         "Show the weekly points breakdown",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoints(cmd, rootOpts, weeksAgo)
		},
	}

	cmd.Flags().IntVar(&weeksAgo, "weeks-ago", 0, "show an earlier week (0 = current)")
	return cmd
}

func runPoints(cmd *cobra.Command, opts *RootOptions, weeksAgo int) error {
	if weeksAgo < 0 {
		return NewExitError(ExitCommandError, "--weeks-ago must be >= 0")
	}

	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	loc := a.store.Location()
	entries, _ := a.store.All()

	weekStart := continuity.WeekStart(opts.now(), a.cfg.WeekStartDay(), loc)
	weekStart = weekStart.AddDate(0, 0, -7*weeksAgo)
	breakdown := continuity.WeeklyPoints(entries, weekStart, loc)

	data := pointsData{
		WeekOf:           weekStart.Format("2006-01-02"),
		Base:             breakdown.Base,
		OverdriveCount:   breakdown.OverdriveCount,
		OverdrivePoints:  breakdown.OverdrivePoints,
		EnergyBonus:      breakdown.EnergyBonus,
		LongestNormalRun: breakdown.LongestNormalRun,
		RunBonus:         breakdown.StreakBonus,
		Total:            breakdown.Total,
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.IsJSON() {
		return formatter.Success(data)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Week of %s\n\n", data.WeekOf)
	fmt.Fprintf(&b, "Base           %d\n", data.Base)
	fmt.Fprintf(&b, "Overdrive      %d session(s)  +%d\n", data.OverdriveCount, data.OverdrivePoints)
	fmt.Fprintf(&b, "Energy bonus   +%d\n", data.EnergyBonus)
	fmt.Fprintf(&b, "Run bonus      %d-day run  +%d\n", data.LongestNormalRun, data.RunBonus)
	fmt.Fprintf(&b, "Total          %d", data.Total)
	return formatter.Success(b.String())
}
