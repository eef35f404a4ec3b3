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
	"github.com/speedviz/speedviz/internal/store"
	"github.com/speedviz/speedviz/internal/targets"
	"github.com/speedviz/speedviz/internal/tui/recents"
)

type view int

const (
	viewSummary view = iota
	viewSeries
	viewHourly
)

// target is a targets.Target with the fetch and read plumbing of the
// location views.
type target targets.Target

func (t target) validate() error {
	if t.Location == "" {
		return output.ErrUsage("location required")
	}
	if err := targets.Target(t).Validate(); err != nil {
		return output.ErrUsageHint("--transit-isp needs --client-isp", "Transit ISPs are scoped to a client ISP at a location")
	}
	return nil
}

// key is the state key of the entry the target reads.
func (t target) key() string {
	switch {
	case t.TransitIsp != "":
		return t.Location + store.KeySep + t.ClientIsp + store.KeySep + t.TransitIsp
	case t.ClientIsp != "":
		return t.Location + store.KeySep + t.ClientIsp
	}
	return t.Location
}

// slot names the selector memo slot for the target's series.
func (t target) slot(v view) string {
	if v == viewHourly {
		return "hourly:" + t.key()
	}
	return "metrics:" + t.key()
}

// fetches returns the messages that load the target's info and series.
func (t target) fetches(v view, agg speedapi.Aggregation, r speedapi.Range) ([]store.Message, error) {
	ranged := func(ids ...string) []string {
		return append(ids, string(agg), r.Start, r.End)
	}
	switch {
	case t.TransitIsp != "":
		if v == viewHourly {
			return nil, output.ErrUsage("--hourly is not available for transit ISPs")
		}
		return []store.Message{
			state.FetchLocationClientIspInfo.FetchIfNeeded(t.Location, t.ClientIsp),
			state.FetchLocationTransitIspMetrics.FetchIfNeeded(ranged(t.Location, t.ClientIsp, t.TransitIsp)...),
		}, nil
	case t.ClientIsp != "":
		series := state.FetchLocationClientIspMetrics
		if v == viewHourly {
			series = state.FetchLocationClientIspHourly
		}
		return []store.Message{
			state.FetchLocationClientIspInfo.FetchIfNeeded(t.Location, t.ClientIsp),
			series.FetchIfNeeded(ranged(t.Location, t.ClientIsp)...),
		}, nil
	}
	series := state.FetchLocationMetrics
	if v == viewHourly {
		series = state.FetchLocationHourly
	}
	return []store.Message{
		state.FetchLocationInfo.FetchIfNeeded(t.Location),
		series.FetchIfNeeded(ranged(t.Location)...),
	}, nil
}

// read picks the target's info and series out of s.
func (t target) read(s *state.State, v view) (store.Resource[speedapi.Info], store.Resource[speedapi.Series]) {
	switch {
	case t.TransitIsp != "":
		return s.LocationClientIsp(t.Location, t.ClientIsp).Info,
			s.LocationTransitIsp(t.Location, t.ClientIsp, t.TransitIsp).Metrics
	case t.ClientIsp != "":
		e := s.LocationClientIsp(t.Location, t.ClientIsp)
		if v == viewHourly {
			return e.Info, e.Hourly
		}
		return e.Info, e.Metrics
	}
	e := s.Location(t.Location)
	if v == viewHourly {
		return e.Info, e.Hourly
	}
	return e.Info, e.Metrics
}

// info falls back to the target's ids when no info was fetched.
func (t target) info(r store.Resource[speedapi.Info]) speedapi.Info {
	info := r.Data
	if info.ID == "" {
		info.ID = t.Location
	}
	if info.Label == "" {
		info.Label = info.ID
	}
	if t.TransitIsp != "" {
		info.Label += " via AS" + t.TransitIsp
	}
	info.ID = t.key()
	return info
}

// NewLocationCmd creates the location command.
func NewLocationCmd() *cobra.Command {
	var rf rangeFlags
	var t target
	var hourly, series bool

	cmd := &cobra.Command{
		Use:     "location <id>",
		Aliases: []string{"loc"},
		Short:   "Show speed measurements for a location",
		Long: `Show download, upload and latency medians for a location.

By default the latest values and the covered period are shown. Use
--series for every data point, or --hourly for a breakdown by hour of
day. Narrow to one client ISP with --client-isp, and to one transit ISP
behind it with --transit-isp.

Examples:
  speedviz location nauscaclaremont
  speedviz location nauscaclaremont --agg month --start "last year" --series
  speedviz location nauscaclaremont --client-isp 7922 --hourly`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}
			if hourly && series {
				return output.ErrUsage("--hourly and --series are mutually exclusive")
			}
			t.Location = args[0]
			if err := t.validate(); err != nil {
				return err
			}
			agg, r, err := rf.resolve(app)
			if err != nil {
				return err
			}

			v := viewSummary
			switch {
			case hourly:
				v = viewHourly
			case series:
				v = viewSeries
			}
			return runLocation(cmd.Context(), app, t, v, agg, r)
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVar(&hourly, "hourly", false, "Break down by hour of day")
	cmd.Flags().BoolVar(&series, "series", false, "List every data point")
	cmd.Flags().StringVar(&t.ClientIsp, "client-isp", "", "Client ISP (ASN) to narrow to")
	cmd.Flags().StringVar(&t.TransitIsp, "transit-isp", "", "Transit ISP (ASN) behind --client-isp")

	completer := completion.NewCompleter(nil)
	cmd.ValidArgsFunction = completer.LocationCompletion()
	_ = cmd.RegisterFlagCompletionFunc("client-isp", completer.ClientIspCompletion())
	_ = cmd.RegisterFlagCompletionFunc("transit-isp", completer.TransitIspCompletion())

	return cmd
}

func runLocation(ctx context.Context, app *appctx.App, t target, v view, agg speedapi.Aggregation, r speedapi.Range) error {
	msgs, err := t.fetches(v, agg, r)
	if err != nil {
		return err
	}
	if err := fetchAll(ctx, app, msgs...); err != nil {
		return err
	}

	infoRes, seriesRes := t.read(app.State(), v)
	info := t.info(infoRes)
	status := state.Status(infoRes, seriesRes)
	slot := t.slot(v)
	rememberTarget(app, t, infoRes.Data.Label)

	opts := []output.ResponseOption{
		output.WithStatus(string(status)),
		output.WithContext("location", t.Location),
		output.WithContext("aggregation", string(agg)),
		output.WithContext("range", rangeLabel(r)),
	}
	if t.ClientIsp != "" {
		opts = append(opts, output.WithContext("client_isp", t.ClientIsp))
	}
	if t.TransitIsp != "" {
		opts = append(opts, output.WithContext("transit_isp", t.TransitIsp))
	}

	switch v {
	case viewHourly:
		rows := hourlyRows(app.Selectors, slot, seriesRes)
		return app.OK(rows, append(opts,
			output.WithEntity("hourly"),
			output.WithSummary(fmt.Sprintf("%s by hour of day (%s)", info.Label, rangeLabel(r))),
		)...)
	case viewSeries:
		rows := seriesRows(app.Selectors, slot, seriesRes)
		return app.OK(rows, append(opts,
			output.WithEntity("measurement"),
			output.WithSummary(fmt.Sprintf("%s: %d %s points (%s)", info.Label, len(rows), agg, rangeLabel(r))),
			output.WithMeta("extents", extentMap(app.Selectors, slot, seriesRes)),
		)...)
	}

	detail := summaryMap(app.Selectors, slot, info, seriesRes, status)
	// Affordances template the plain location id.
	detail["id"] = t.Location
	return app.OK(detail, append(opts,
		output.WithEntity("location"),
		output.WithSummary(info.Label),
		output.WithBreadcrumbs(locationBreadcrumbs(t)...),
	)...)
}

func locationBreadcrumbs(t target) []output.Breadcrumb {
	crumbs := []output.Breadcrumb{
		{Action: "series", Cmd: "speedviz location " + t.Location + " --series", Description: "Every data point"},
		{Action: "watch", Cmd: "speedviz watch " + t.Location, Description: "Live view"},
	}
	if t.ClientIsp == "" {
		crumbs = append(crumbs, output.Breadcrumb{Action: "top", Cmd: "speedviz top " + t.Location, Description: "Top client ISPs"})
	}
	return crumbs
}

// rememberTarget records the target in recents. label is the fetched
// info label, which names the client ISP when one is set.
func rememberTarget(app *appctx.App, t target, label string) {
	if app.Recents == nil {
		return
	}
	if label == "" {
		label = t.Location
	}
	if t.ClientIsp == "" {
		app.Recents.Add(recents.Item{ID: t.Location, Label: label, Type: recents.TypeLocation})
		return
	}
	app.Recents.Add(recents.Item{ID: t.Location, Label: t.Location, Type: recents.TypeLocation})
	app.Recents.Add(recents.Item{ID: t.ClientIsp, Label: label, Type: recents.TypeClientIsp})
	if t.TransitIsp != "" {
		app.Recents.Add(recents.Item{ID: t.TransitIsp, Label: "AS" + t.TransitIsp, Type: recents.TypeTransitIsp})
	}
}
