package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/completion"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/state"
	"github.com/speedviz/speedviz/internal/store"
)

// maxParallelLocations bounds concurrent location loads in compare.
const maxParallelLocations = 4

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "compare <location> <location>...",
		Short: "Compare several locations side by side",
		Long: `Load several locations concurrently and list their latest medians.

A location that fails to load is listed with status "error"; the overall
status merges every location's.

Examples:
  speedviz compare nauscaclaremont nausnynewyork
  speedviz compare nauscaclaremont nausnynewyork --agg month --start "last year"`,
		Args:              cobra.MinimumNArgs(2),
		ValidArgsFunction: completion.NewCompleter(nil).LocationCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			agg, r, err := rf.resolve(app)
			if err != nil {
				return err
			}
			return runCompare(cmd.Context(), app, args, agg, r)
		},
	}

	rf.register(cmd)
	return cmd
}

// compareResult is one location's outcome.
type compareResult struct {
	target target
	err    error
}

func runCompare(ctx context.Context, app *appctx.App, locations []string, agg speedapi.Aggregation, r speedapi.Range) error {
	results := make([]compareResult, len(locations))
	var mu sync.Mutex

	err := withSpinner(ctx, app, fmt.Sprintf("Fetching %d locations", len(locations)), func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxParallelLocations)
		for i, loc := range locations {
			t := target{Location: loc}
			g.Go(func() error {
				msgs, _ := t.fetches(viewSummary, agg, r)
				err := fetchAll(gctx, app, msgs...)
				mu.Lock()
				results[i] = compareResult{target: t, err: err}
				mu.Unlock()
				// Per-location failures are reported, not fatal.
				return gctx.Err()
			})
		}
		return g.Wait()
	})
	if err != nil {
		return err
	}

	s := app.State()
	rows := make([]map[string]any, 0, len(results))
	statuses := make([]store.Statuser, 0, len(results))
	var downloads, latencies []state.Extent
	failed := 0

	for _, res := range results {
		infoRes, seriesRes := res.target.read(s, viewSummary)
		slot := res.target.slot(viewSummary)
		status := state.Status(infoRes, seriesRes)
		statuses = append(statuses, status)

		row := summaryMap(app.Selectors, slot, res.target.info(infoRes), seriesRes, status)
		if res.err != nil {
			failed++
			row["error"] = output.AsError(res.err).Message
			rows = append(rows, row)
			continue
		}
		rows = append(rows, row)
		downloads = append(downloads, app.Selectors.Extent(slot, seriesRes, speedapi.MetricDownload))
		latencies = append(latencies, app.Selectors.Extent(slot, seriesRes, speedapi.MetricRTT))
	}

	if failed == len(results) {
		return results[0].err
	}

	down := state.CombinedExtent(downloads...)
	rtt := state.CombinedExtent(latencies...)
	summary := fmt.Sprintf("%d locations, download %s, latency %s",
		len(rows), formatRange(down, "Mbps"), formatRange(rtt, "ms"))
	if failed > 0 {
		summary += fmt.Sprintf(" (%d failed)", failed)
	}

	return app.OK(rows,
		output.WithEntity("location"),
		output.WithStatus(string(state.Status(statuses...))),
		output.WithSummary(summary),
		output.WithContext("aggregation", string(agg)),
		output.WithContext("range", rangeLabel(r)),
		output.WithMeta("extents", map[string]any{
			speedapi.MetricDownload: extentJSON(down),
			speedapi.MetricRTT:      extentJSON(rtt),
		}),
	)
}

func extentJSON(e state.Extent) any {
	if !e.OK {
		return nil
	}
	return map[string]float64{"min": e.Min, "max": e.Max}
}
