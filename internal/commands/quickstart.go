package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/tui/recents"
	"github.com/speedviz/speedviz/internal/version"
)

// QuickStartResponse is the JSON structure for the quick-start command.
type QuickStartResponse struct {
	Version  string       `json:"version"`
	Auth     AuthInfo     `json:"auth"`
	Context  ContextInfo  `json:"context"`
	Commands CommandsInfo `json:"commands"`
}

// AuthInfo describes the token status.
type AuthInfo struct {
	Status string `json:"status"`
	Source string `json:"source,omitempty"`
}

// ContextInfo describes the effective defaults.
type ContextInfo struct {
	BaseURL         string   `json:"base_url"`
	TimeAggregation string   `json:"time_aggregation"`
	RecentLocations []string `json:"recent_locations,omitempty"`
}

// CommandsInfo lists suggested commands.
type CommandsInfo struct {
	QuickStart []string `json:"quick_start"`
	Common     []string `json:"common"`
}

// NewQuickStartCmd creates the quick-start command.
func NewQuickStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "quick-start",
		Short:  "Show quick start guide",
		Long:   "Display a quick start guide with token status and suggested commands.",
		Hidden: true, // mainly run as the default
		RunE:   RunQuickStart,
	}
}

// RunQuickStart is also the root command's action when speedviz runs
// without arguments.
func RunQuickStart(cmd *cobra.Command, args []string) error {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	authInfo := AuthInfo{Status: "anonymous"}
	if st, err := app.Auth.Status(); err == nil && st.Authenticated {
		authInfo = AuthInfo{Status: "authenticated", Source: st.Source}
	}

	contextInfo := ContextInfo{
		BaseURL:         app.Config.BaseURL,
		TimeAggregation: app.Config.TimeAggregation,
		RecentLocations: app.Recents.IDs(recents.TypeLocation),
	}

	example := "nauscaclaremont"
	if len(contextInfo.RecentLocations) > 0 {
		example = contextInfo.RecentLocations[0]
	}

	resp := QuickStartResponse{
		Version: version.Version,
		Auth:    authInfo,
		Context: contextInfo,
		Commands: CommandsInfo{
			QuickStart: []string{
				`speedviz search "claremont"`,
				"speedviz location " + example,
				"speedviz top " + example,
			},
			Common: []string{
				"speedviz location " + example + " --hourly",
				"speedviz compare <location> <location>",
				"speedviz report " + example + " -o report.md",
				"speedviz watch " + example,
			},
		},
	}

	summary := fmt.Sprintf("speedviz %s - %s, %s aggregation", version.Version, authInfo.Status, contextInfo.TimeAggregation)

	breadcrumbs := []output.Breadcrumb{
		{Action: "search", Cmd: `speedviz search "<place>"`, Description: "Find a location"},
		{Action: "location", Cmd: "speedviz location " + example, Description: "Show a location"},
	}
	if authInfo.Status == "anonymous" {
		breadcrumbs = append(breadcrumbs, output.Breadcrumb{
			Action: "authenticate", Cmd: "speedviz auth login", Description: "Store an API token",
		})
	}

	return app.OK(resp,
		output.WithSummary(summary),
		output.WithBreadcrumbs(breadcrumbs...),
	)
}
