package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/state"
	"github.com/speedviz/speedviz/internal/tui"
	"github.com/speedviz/speedviz/internal/tui/recents"
)

// pick is the interactive chooser; tests replace it. recent items are
// listed first and marked.
var pick = func(title string, items, recent []tui.PickerItem) (*tui.PickerItem, error) {
	return tui.NewPicker(items,
		tui.WithPickerTitle(title),
		tui.WithRecentItems(recent),
		tui.WithAutoSelectSingle(),
	).Run()
}

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	var kind string
	var pickOne bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search locations or ISPs",
		Long: `Search locations, client ISPs or transit ISPs by name.

With --pick, choose a result interactively and show it. Without a query,
--pick offers recently viewed items.

Examples:
  speedviz search claremont
  speedviz search comcast --type clients
  speedviz search --pick`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			st, err := speedapi.ParseSearchType(kind)
			if err != nil {
				return output.ErrUsageHint(err.Error(), "Use --type locations, clients or servers")
			}
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			if query == "" && !pickOne {
				return output.ErrUsage("search query required")
			}
			if pickOne && !app.IsInteractive() {
				return output.ErrUsage("--pick needs an interactive terminal")
			}

			var rows []map[string]any
			status := "ready"
			if query != "" {
				if err := app.Fetch(cmd.Context(), state.FetchSearch.FetchIfNeeded(string(st), query)); err != nil {
					return err
				}
				entry := app.State().SearchResults(st)
				rows = infoRows(entry.Results.Data, "")
				status = string(entry.Results.Status())
			} else {
				rows = recentRows(app, st)
			}

			if !pickOne {
				return app.OK(rows,
					output.WithEntity("search_result"),
					output.WithStatus(status),
					output.WithSummary(fmt.Sprintf("%d %s matching %q", len(rows), st, query)),
				)
			}
			return pickAndShow(cmd.Context(), app, st, rows)
		},
	}

	cmd.Flags().StringVarP(&kind, "type", "t", string(speedapi.SearchLocations), "What to search: locations, clients or servers")
	cmd.Flags().BoolVar(&pickOne, "pick", false, "Choose a result interactively")
	return cmd
}

func recentType(st speedapi.SearchType) string {
	switch st {
	case speedapi.SearchClients:
		return recents.TypeClientIsp
	case speedapi.SearchServers:
		return recents.TypeTransitIsp
	}
	return recents.TypeLocation
}

func recentRows(app *appctx.App, st speedapi.SearchType) []map[string]any {
	items := app.Recents.Get(recentType(st))
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, map[string]any{"id": item.ID, "label": item.Label})
	}
	return rows
}

func pickAndShow(ctx context.Context, app *appctx.App, st speedapi.SearchType, rows []map[string]any) error {
	if len(rows) == 0 {
		return output.ErrNotFound(string(st), "matching query")
	}
	items := make([]tui.PickerItem, len(rows))
	offered := make(map[string]bool, len(rows))
	for i, row := range rows {
		id, _ := row["id"].(string)
		label, _ := row["label"].(string)
		items[i] = tui.PickerItem{ID: id, Title: label, Description: id}
		offered[id] = true
	}
	var recent []tui.PickerItem
	for _, item := range app.Recents.Get(recentType(st)) {
		if offered[item.ID] {
			recent = append(recent, tui.PickerItem{ID: item.ID, Title: item.Label, Description: item.ID})
		}
	}

	chosen, err := pick(fmt.Sprintf("Choose one of %d %s", len(items), st), items, recent)
	if err != nil {
		return err
	}
	if chosen == nil {
		return output.ErrUsage("selection canceled")
	}

	switch st {
	case speedapi.SearchClients:
		return showIsp(ctx, app, chosen.ID, false)
	case speedapi.SearchServers:
		return showIsp(ctx, app, chosen.ID, true)
	}
	agg, r, err := rangeFlags{}.resolve(app)
	if err != nil {
		return err
	}
	return runLocation(ctx, app, target{Location: chosen.ID}, viewSummary, agg, r)
}
