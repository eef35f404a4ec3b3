// Package cli wires the root command, global flags and error reporting.
package cli

import (
	"context"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/commands"
	"github.com/speedviz/speedviz/internal/completion"
	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/version"
)

// closeTimeout bounds span and cache flushing on exit.
const closeTimeout = 5 * time.Second

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:   "speedviz",
		Short: "Explore internet speed measurements",
		Long: `speedviz shows aggregated internet speed test results by location,
client ISP and transit ISP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          commands.RunQuickStart,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			if _, err := output.ParseFormat(flags.Format); err != nil {
				return err
			}

			cfg, err := config.Load(flags.Overrides())
			if err != nil {
				return output.ErrUsage(err.Error())
			}

			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.ApplyFlags()
			if err := app.StartTracing(cmd.Context()); err != nil {
				app.Logger.Warn("tracing disabled", "error", err)
			}

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}
	cmd.SetVersionTemplate(version.Full() + "\n")

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.MD, "markdown", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	cmd.PersistentFlags().BoolVar(&flags.Count, "count", false, "Output only count")
	cmd.PersistentFlags().BoolVar(&flags.Agent, "agent", false, "Agent mode (JSON + quiet)")
	cmd.PersistentFlags().StringVar(&flags.Format, "format", "", "Output format (auto, json, yaml, markdown, styled, quiet, ids, count)")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter JSON output with a jq expression")

	// Config overrides
	cmd.PersistentFlags().StringVar(&flags.BaseURL, "base-url", "", "API base URL")
	cmd.PersistentFlags().StringVar(&flags.Agg, "agg", "", "Time aggregation (day, month, year)")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")
	cmd.PersistentFlags().BoolVar(&flags.NoCache, "no-cache", false, "Bypass the response cache")
	cmd.PersistentFlags().StringVar(&flags.Locale, "locale", "", "Number formatting locale (e.g. de-DE)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for fetches, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")

	_ = cmd.RegisterFlagCompletionFunc("agg", completion.AggregationCompletion)
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(
		[]cobra.Completion{"auto", "json", "yaml", "markdown", "styled", "quiet", "ids", "count"},
		cobra.ShellCompDirectiveNoFileComp,
	))

	return cmd
}

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	cmd := NewRootCmd()
	cmd.AddCommand(commands.All()...)
	os.Exit(run(cmd))
}

// run executes cmd and returns the process exit code.
func run(cmd *cobra.Command) int {
	executedCmd, err := cmd.ExecuteC()

	var app *appctx.App
	if executedCmd != nil {
		app = appctx.FromContext(executedCmd.Context())
	}
	if app != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if cerr := app.Close(ctx); cerr != nil {
				app.Logger.Warn("shutdown", "error", cerr)
			}
		}()
	}

	if err == nil {
		return 0
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	if app != nil {
		_ = app.Err(err)
		return apiErr.ExitCode()
	}

	// App not available (flag parsing or config failed before setup).
	writer := output.New(output.Options{
		Format: fallbackFormat(cmd),
		Writer: cmd.OutOrStdout(),
	})
	_ = writer.Err(err)
	return apiErr.ExitCode()
}

// fallbackFormat picks an output format from the raw flags when no App
// could be built.
func fallbackFormat(cmd *cobra.Command) output.Format {
	pf := cmd.PersistentFlags()
	agent, _ := pf.GetBool("agent")
	quiet, _ := pf.GetBool("quiet")
	idsOnly, _ := pf.GetBool("ids-only")
	count, _ := pf.GetBool("count")
	styled, _ := pf.GetBool("styled")
	md, _ := pf.GetBool("md")
	jsonFlag, _ := pf.GetBool("json")

	switch {
	case agent || quiet:
		return output.FormatQuiet
	case idsOnly:
		return output.FormatIDs
	case count:
		return output.FormatCount
	case jsonFlag:
		return output.FormatJSON
	case styled:
		return output.FormatStyled
	case md:
		return output.FormatMarkdown
	}
	if s, _ := pf.GetString("format"); s != "" {
		if f, err := output.ParseFormat(s); err == nil {
			return f
		}
	}
	return output.FormatAuto
}

var shorthandRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

// transformCobraError rewrites Cobra's parse errors into usage errors with
// consistent wording.
func transformCobraError(err error) error {
	msg := err.Error()

	// "flag needs an argument: --FLAG" → "--FLAG requires a value"
	if strings.HasPrefix(msg, "flag needs an argument: ") {
		flag := strings.TrimPrefix(msg, "flag needs an argument: ")
		return output.ErrUsage(flag + " requires a value")
	}

	if strings.HasPrefix(msg, "unknown flag: ") {
		flag := strings.TrimPrefix(msg, "unknown flag: ")
		return output.ErrUsage("Unknown option: " + flag)
	}

	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		if matches := shorthandRe.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrUsage("Unknown option: " + matches[1])
		}
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: speedviz commands")
	}

	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}

	// "requires at least 2 arg(s), only received 1" and friends
	if strings.Contains(msg, "arg(s)") {
		return output.ErrUsage(msg)
	}

	if strings.HasPrefix(msg, "if any flags in the group") {
		return output.ErrUsage(msg)
	}

	return err
}
