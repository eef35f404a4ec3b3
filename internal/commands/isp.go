package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/completion"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/state"
	"github.com/speedviz/speedviz/internal/tui/recents"
)

// NewIspCmd creates the isp command.
func NewIspCmd() *cobra.Command {
	var transit bool

	cmd := &cobra.Command{
		Use:   "isp <asn>",
		Short: "Show an ISP",
		Long: `Show a client ISP, or a transit ISP with --transit.

Examples:
  speedviz isp 7922
  speedviz isp 3356 --transit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			return showIsp(cmd.Context(), app, args[0], transit)
		},
	}

	cmd.Flags().BoolVar(&transit, "transit", false, "Look up a transit (server-side) ISP")

	completer := completion.NewCompleter(nil)
	cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if transit {
			return completer.TransitIspCompletion()(cmd, args, toComplete)
		}
		return completer.ClientIspCompletion()(cmd, args, toComplete)
	}
	return cmd
}

func showIsp(ctx context.Context, app *appctx.App, id string, transit bool) error {
	fetcher, kind, itemType := state.FetchClientIspInfo, "client", recents.TypeClientIsp
	if transit {
		fetcher, kind, itemType = state.FetchTransitIspInfo, "transit", recents.TypeTransitIsp
	}
	if err := app.Fetch(ctx, fetcher.FetchIfNeeded(id)); err != nil {
		return err
	}

	var entry state.IspEntry
	if transit {
		entry = app.State().TransitIsp(id)
	} else {
		entry = app.State().ClientIsp(id)
	}
	info := entry.Info.Data
	if info.ID == "" {
		info.ID = id
	}
	if info.Label == "" {
		info.Label = "AS" + id
	}
	app.Recents.Add(recents.Item{ID: id, Label: info.Label, Type: itemType})

	row := infoRows([]speedapi.Info{info}, kind)[0]
	return app.OK(row,
		output.WithEntity("isp"),
		output.WithStatus(string(entry.Info.Status())),
		output.WithSummary(info.Label),
	)
}
