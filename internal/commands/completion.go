package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/tui/recents"
)

// NewCompletionCmd creates the completion command group.
func NewCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [shell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for speedviz.

Location and ISP arguments complete from the entities you viewed recently.

To load completions:

Bash:
  $ source <(speedviz completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ speedviz completion bash > /etc/bash_completion.d/speedviz
  # macOS:
  $ speedviz completion bash > $(brew --prefix)/etc/bash_completion.d/speedviz

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ speedviz completion zsh > "${fpath[1]}/_speedviz"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ speedviz completion fish | source

  # To load completions for each session, execute once:
  $ speedviz completion fish > ~/.config/fish/completions/speedviz.fish

PowerShell:
  PS> speedviz completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd.Root(), cmd.OutOrStdout(), args[0])
		},
	}

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		cmd.AddCommand(newCompletionShellCmd(shell))
	}
	cmd.AddCommand(newCompletionStatusCmd())

	return cmd
}

func runCompletion(rootCmd *cobra.Command, w io.Writer, shell string) error {
	switch shell {
	case "bash":
		return rootCmd.GenBashCompletionV2(w, true)
	case "zsh":
		return rootCmd.GenZshCompletion(w)
	case "fish":
		return rootCmd.GenFishCompletion(w, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unknown shell: %s", shell)
	}
}

func newCompletionShellCmd(shell string) *cobra.Command {
	return &cobra.Command{
		Use:                   shell,
		Short:                 fmt.Sprintf("Generate %s completion script", shell),
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd.Root(), cmd.OutOrStdout(), shell)
		},
	}
}

func newCompletionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show completion data status",
		Long: `Show how many recently viewed entities are available for completion.

Note: If you set cache_dir in a config file, completions won't find it.
Set SPEEDVIZ_CACHE_DIR in your environment instead.
`,
		RunE: runCompletionStatus,
	}
}

func runCompletionStatus(cmd *cobra.Command, args []string) error {
	app := appctx.FromContext(cmd.Context())

	counts := map[string]int{}
	total := 0
	for _, itemType := range []string{recents.TypeLocation, recents.TypeClientIsp, recents.TypeTransitIsp} {
		n := len(app.Recents.Get(itemType))
		counts[itemType] = n
		total += n
	}

	status := "empty"
	if total > 0 {
		status = "ready"
	}

	result := map[string]any{
		"locations":    counts[recents.TypeLocation],
		"client_isps":  counts[recents.TypeClientIsp],
		"transit_isps": counts[recents.TypeTransitIsp],
		"status":       status,
		"cache_dir":    app.Config.CacheDir,
	}

	summary := fmt.Sprintf("%d locations, %d client ISPs, %d transit ISPs (%s)",
		counts[recents.TypeLocation], counts[recents.TypeClientIsp], counts[recents.TypeTransitIsp], status)

	return app.OK(result, output.WithSummary(summary))
}
