package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/4kiu/axiom/internal/continuity"
	"github.com/4kiu/axiom/internal/logbook"
)

type statusData struct {
	Today     string `json:"today,omitempty"`
	Streak    int    `json:"streak"`
	Integrity int    `json:"integrity"`
	Account   string `json:"account,omitempty"`
	LastSync  string `json:"last_sync,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show streak, integrity, and sync state",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, rootOpts)
		},
	}
	return cmd
}

func runStatus(cmd *cobra.Command, opts *RootOptions) error {
	a, err := openApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.Close()

	now := opts.now()
	loc := a.store.Location()
	entries, _ := a.store.All()

	data := statusData{
		Streak:    continuity.Streak(entries, now, loc),
		Integrity: continuity.Integrity(entries, now, loc),
	}

	// Today's entry, if any. Later entries shadow earlier ones for display
	// since All is sorted ascending.
	today := logbook.DayOf(now, loc)
	for _, e := range entries {
		if e.Day(loc).Equal(today) {
			data.Today = e.Identity.String()
		}
	}

	if profile, err := a.auth.Profile(); err == nil {
		data.Account = profile.Email
	}
	if last := a.store.LastSync(); !last.IsZero() {
		data.LastSync = last.In(loc).Format("2006-01-02 15:04")
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.IsJSON() {
		return formatter.Success(data)
	}

	var b strings.Builder
	todayText := data.Today
	if todayText == "" {
		todayText = "-"
	}
	account := data.Account
	if account == "" {
		account = "not linked"
	}
	lastSync := data.LastSync
	if lastSync == "" {
		lastSync = "never"
	}
	fmt.Fprintf(&b, "Today      %s\n", todayText)
	fmt.Fprintf(&b, "Streak     %s\n", formatDays(data.Streak))
	fmt.Fprintf(&b, "Integrity  %d%%\n", data.Integrity)
	fmt.Fprintf(&b, "Account    %s\n", account)
	fmt.Fprintf(&b, "Last sync  %s", lastSync)
	return formatter.Success(b.String())
}

func formatDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
