package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link",
		Short: "Link a Google account",
		Long: `Run the browser consent flow and store the resulting credential.

The OAuth client id and secret come from the config file or the
AXIOM_CLIENT_ID / AXIOM_CLIENT_SECRET environment variables. The
credential is revoked automatically after 30 days without use.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.OAuth.ClientID == "" {
				return NewExitError(ExitCommandError, "no OAuth client id configured; set oauth.client_id or AXIOM_CLIENT_ID")
			}

			profile, err := a.auth.Link(cmd.Context(), func(authURL string) {
				fmt.Fprintln(cmd.OutOrStdout(), "Open this URL in your browser to continue:")
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout(), "  "+authURL)
				fmt.Fprintln(cmd.OutOrStdout())
			})
			if err != nil {
				return WrapExitError(ExitFailure, "link failed", err)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.IsJSON() {
				return formatter.Success(profile)
			}
			return formatter.Success(fmt.Sprintf("Linked as %s <%s>", profile.Name, profile.Email))
		},
	}
}

// NewUnlinkCommand creates the unlink command.
func NewUnlinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unlink",
		Short:         "Revoke the stored credential",
		Long:          "Revoke the credential at the provider and remove it locally. Local data is kept.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.auth.Revoke(); err != nil {
				return WrapExitError(ExitCommandError, "unlink failed", err)
			}

			formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if formatter.IsJSON() {
				return formatter.Success(map[string]string{"account": "unlinked"})
			}
			return formatter.Success("Unlinked. Local data is untouched.")
		},
	}
}
