package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/completion"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/state"
)

// NewTopCmd creates the top command.
func NewTopCmd() *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "top <location>",
		Short: "List the top client ISPs at a location",
		Long: `List the client ISPs with the most tests at a location.

Examples:
  speedviz top nauscaclaremont
  speedviz top nauscaclaremont --start "last month"`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.NewCompleter(nil).LocationCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			_, r, err := rf.resolve(app)
			if err != nil {
				return err
			}
			loc := args[0]

			err = fetchAll(cmd.Context(), app,
				state.FetchLocationInfo.FetchIfNeeded(loc),
				state.FetchLocationTopClientIsps.FetchIfNeeded(loc, r.Start, r.End),
			)
			if err != nil {
				return err
			}

			entry := app.State().Location(loc)
			rows := infoRows(entry.TopClientIsps.Data, "client")
			label := entry.Info.Data.Label
			if label == "" {
				label = loc
			}

			var crumbs []output.Breadcrumb
			if len(rows) > 0 {
				first := entry.TopClientIsps.Data[0].ID
				crumbs = append(crumbs, output.Breadcrumb{
					Action:      "drill",
					Cmd:         fmt.Sprintf("speedviz location %s --client-isp %s", loc, first),
					Description: "Measurements for the top ISP",
				})
			}

			return app.OK(rows,
				output.WithEntity("isp"),
				output.WithStatus(string(state.Status(entry.Info, entry.TopClientIsps))),
				output.WithSummary(fmt.Sprintf("Top %d client ISPs in %s (%s)", len(rows), label, rangeLabel(r))),
				output.WithContext("location", loc),
				output.WithBreadcrumbs(crumbs...),
			)
		},
	}

	rf.registerDates(cmd)
	return cmd
}

// infoRows flattens infos for output. kind tags what they are.
func infoRows(infos []speedapi.Info, kind string) []map[string]any {
	rows := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		row := map[string]any{"id": info.ID, "label": info.Label}
		if info.Type != "" {
			row["type"] = info.Type
		}
		if kind != "" {
			row["kind"] = kind
		}
		rows = append(rows, row)
	}
	return rows
}
