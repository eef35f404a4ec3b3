package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/auth"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/tui"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API tokens",
		Long: `Manage the optional API token.

The public API works without a token. A token raises rate limits and is
sent as a bearer header to the configured base_url only. The ` + auth.TokenEnv + `
environment variable takes precedence over a stored token.`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var token string
	var withToken bool
	var label string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Long: `Store an API token for the configured base_url.

The token is kept in the system keyring when one is available.`,
		Example: `  speedviz auth login
  speedviz auth login --token abc123 --label laptop
  echo "$TOKEN" | speedviz auth login --with-token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			switch {
			case token != "":
			case withToken:
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return output.ErrUsage("No token on stdin")
				}
				token = strings.TrimSpace(line)
			case app.IsInteractive():
				var err error
				token, err = tui.Secret("API token", "Paste the token for "+app.Config.BaseURL)
				if err != nil {
					return err
				}
			default:
				return output.ErrUsageHint("No token given", "Pass --token or pipe one with --with-token")
			}

			if err := app.Auth.Login(token, label); err != nil {
				return err
			}

			st, err := app.Auth.Status()
			if err != nil {
				return err
			}
			return app.OK(st,
				output.WithSummary(fmt.Sprintf("Token saved for %s (%s)", st.Origin, st.Backend)),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "status",
						Cmd:         "speedviz auth status",
						Description: "Check token",
					},
				),
			)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "API token")
	cmd.Flags().BoolVar(&withToken, "with-token", false, "Read the token from stdin")
	cmd.Flags().StringVar(&label, "label", "", "Note stored alongside the token")
	cmd.MarkFlagsMutuallyExclusive("token", "with-token")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token",
		Long:  "Remove the stored API token for the configured base_url.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			if !force && app.IsInteractive() {
				ok, err := tui.Confirm("Remove the stored token for "+app.Config.BaseURL+"?", false)
				if err != nil {
					return err
				}
				if !ok {
					return app.OK(map[string]string{"status": "cancelled"}, output.WithSummary("Cancelled"))
				}
			}

			if err := app.Auth.Logout(); err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "logged_out",
			}, output.WithSummary("Token removed"))
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show token status",
		Long:  "Report whether a token is configured and where it comes from. The token itself is never printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			st, err := app.Auth.Status()
			if err != nil {
				return err
			}

			var summary string
			switch {
			case !st.Authenticated:
				summary = "No token (anonymous access)"
			case st.Source == "env":
				summary = "Token from " + auth.TokenEnv
			default:
				summary = fmt.Sprintf("Token stored in %s", st.Source)
				if st.Label != "" {
					summary += fmt.Sprintf(" (%s)", st.Label)
				}
			}

			return app.OK(st, output.WithSummary(summary))
		},
	}
}
