// Package completion provides shell completion for entity arguments,
// drawn from the recently viewed locations and ISPs.
package completion

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/tui/recents"
)

// CacheDirFunc returns the cache directory to use for completion.
// Takes the command to allow checking both context and flags at completion time.
type CacheDirFunc func(cmd *cobra.Command) string

// DefaultCacheDirFunc returns the cache directory by checking (in order):
// 1. --cache-dir flag on the root command
// 2. App config from context (set by PersistentPreRunE)
// 3. SPEEDVIZ_CACHE_DIR environment variable
// 4. Default cache directory
//
// During __complete PersistentPreRunE does not run, so cache_dir from
// config files is not honored. Set SPEEDVIZ_CACHE_DIR instead.
func DefaultCacheDirFunc(cmd *cobra.Command) string {
	if root := cmd.Root(); root != nil {
		if flag := root.PersistentFlags().Lookup("cache-dir"); flag != nil && flag.Changed {
			return flag.Value.String()
		}
	}
	if app := appctx.FromContext(cmd.Context()); app != nil {
		return app.Config.CacheDir
	}
	if v := os.Getenv("SPEEDVIZ_CACHE_DIR"); v != "" {
		return v
	}
	return config.Default().CacheDir
}

// Completer provides tab completion functions for the CLI.
// It reads the recents file and does NOT initialize the full App.
type Completer struct {
	getCacheDir CacheDirFunc
}

// NewCompleter creates a new Completer.
// If getCacheDir is nil, DefaultCacheDirFunc is used.
func NewCompleter(getCacheDir CacheDirFunc) *Completer {
	if getCacheDir == nil {
		getCacheDir = DefaultCacheDirFunc
	}
	return &Completer{getCacheDir: getCacheDir}
}

func (c *Completer) items(cmd *cobra.Command, itemType string) []recents.Item {
	return recents.NewStore(c.getCacheDir(cmd)).Get(itemType)
}

// LocationCompletion completes location ids, most recent first.
func (c *Completer) LocationCompletion() cobra.CompletionFunc {
	return c.recentCompletion(recents.TypeLocation)
}

// ClientIspCompletion completes client ISP ASNs, most recent first.
func (c *Completer) ClientIspCompletion() cobra.CompletionFunc {
	return c.recentCompletion(recents.TypeClientIsp)
}

// TransitIspCompletion completes transit ISP ASNs, most recent first.
func (c *Completer) TransitIspCompletion() cobra.CompletionFunc {
	return c.recentCompletion(recents.TypeTransitIsp)
}

func (c *Completer) recentCompletion(itemType string) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		items := c.items(cmd, itemType)
		if len(items) == 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		toCompleteLower := strings.ToLower(toComplete)
		var completions []cobra.Completion
		for _, item := range items {
			if matches(item, toCompleteLower) {
				completions = append(completions, cobra.CompletionWithDesc(item.ID, item.Label))
			}
		}

		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// matches accepts an id prefix or any substring of the label.
func matches(item recents.Item, needle string) bool {
	return strings.HasPrefix(strings.ToLower(item.ID), needle) ||
		strings.Contains(strings.ToLower(item.Label), needle)
}

// AggregationCompletion completes --agg values.
func AggregationCompletion(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	var completions []cobra.Completion
	for _, agg := range config.Aggregations {
		if strings.HasPrefix(agg, toComplete) {
			completions = append(completions, cobra.Completion(agg))
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
