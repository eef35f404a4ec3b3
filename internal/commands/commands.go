// Package commands implements the CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// All returns every top-level command, in registration order.
func All() []*cobra.Command {
	return []*cobra.Command{
		NewLocationCmd(),
		NewTopCmd(),
		NewIspCmd(),
		NewSearchCmd(),
		NewCompareCmd(),
		NewReportCmd(),
		NewWatchCmd(),
		NewAuthCmd(),
		NewConfigCmd(),
		NewDoctorCmd(),
		NewQuickStartCmd(),
		NewCommandsCmd(),
		NewCompletionCmd(),
	}
}

// commandCategories returns all command categories for the catalog.
func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Measurements",
			Commands: []CommandInfo{
				{Name: "location", Category: "measurements", Description: "Show speed measurements for a location"},
				{Name: "top", Category: "measurements", Description: "List the top client ISPs at a location"},
				{Name: "isp", Category: "measurements", Description: "Show a client or transit ISP"},
				{Name: "compare", Category: "measurements", Description: "Compare locations side by side"},
			},
		},
		{
			Name: "Search & Reports",
			Commands: []CommandInfo{
				{Name: "search", Category: "search", Description: "Search locations and ISPs"},
				{Name: "report", Category: "search", Description: "Write a markdown report for a location"},
				{Name: "watch", Category: "search", Description: "Refresh a dashboard of locations and ISPs"},
			},
		},
		{
			Name: "Auth & Config",
			Commands: []CommandInfo{
				{Name: "auth", Category: "auth", Description: "Manage API tokens", Actions: []string{"login", "logout", "status"}},
				{Name: "config", Category: "auth", Description: "Manage configuration", Actions: []string{"show", "init", "set", "unset"}},
				{Name: "doctor", Category: "auth", Description: "Check CLI health and diagnose issues"},
				{Name: "quick-start", Category: "auth", Description: "Show getting started guide"},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "completion", Category: "additional", Description: "Generate shell completions", Actions: []string{"bash", "zsh", "fish", "powershell", "status"}},
				{Name: "help", Category: "additional", Description: "Show help"},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
// Used by tests to verify catalog matches registered commands.
func CatalogCommandNames() []string {
	categories := commandCategories()
	total := 0
	for _, cat := range categories {
		total += len(cat.Commands)
	}
	names := make([]string, 0, total)
	for _, cat := range categories {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all available speedviz commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			return app.OK(commandCategories(),
				output.WithSummary("All available speedviz commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "help",
						Cmd:         "speedviz --help",
						Description: "View help",
					},
				),
			)
		},
	}
}
