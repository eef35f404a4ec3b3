package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/presenter"
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/state"
	"github.com/speedviz/speedviz/internal/store"
	"github.com/speedviz/speedviz/internal/targets"
	"github.com/speedviz/speedviz/internal/tui"
)

const watchDefaultStart = "7 days ago"

// watchSet is the mutable list of watched targets. The targets file
// watcher replaces it while the view reads it.
type watchSet struct {
	mu   sync.RWMutex
	list []target
}

func (w *watchSet) get() []target {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.list
}

func (w *watchSet) set(list []target) {
	w.mu.Lock()
	w.list = list
	w.mu.Unlock()
}

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	rf := rangeFlags{defaultStart: watchDefaultStart}
	var file string
	var interval time.Duration
	var once bool

	cmd := &cobra.Command{
		Use:   "watch [target...]",
		Short: "Keep a live view of locations and ISPs",
		Long: `Refresh the latest medians of a set of targets on an interval.

A target is location, location/client_isp or location/client_isp/transit_isp.
Targets can also come from a YAML file given with --file; edits to the
file are picked up while watching.

Without a terminal, one snapshot is printed and the command exits.

Examples:
  speedviz watch nauscaclaremont nauscaclaremont/7922
  speedviz watch --file targets.yaml --interval 5m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			list, err := parseTargetArgs(args)
			if err != nil {
				return err
			}
			if file != "" {
				f, err := targets.Load(file)
				if err != nil {
					return output.ErrUsageHint(err.Error(), "Check the targets file")
				}
				list = append(list, fromFile(f)...)
				if f.Start != "" && rf.start == "" {
					rf.start = f.Start
				}
				if f.Interval > 0 && !cmd.Flags().Changed("interval") {
					interval = f.Interval
				}
			}
			if len(list) == 0 {
				return output.ErrUsageHint("no targets to watch", "Pass targets as arguments or use --file")
			}
			if interval < targets.MinInterval {
				return output.ErrUsage(fmt.Sprintf("--interval must be at least %s", targets.MinInterval))
			}

			agg, r, err := rf.resolve(app)
			if err != nil {
				return err
			}

			set := &watchSet{list: list}
			if once || !app.IsInteractive() {
				return watchSnapshot(cmd.Context(), app, set.get(), agg, r)
			}
			return runWatch(cmd.Context(), app, set, file, interval, agg, r)
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file of targets, reloaded on change")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "Refresh interval")
	cmd.Flags().BoolVar(&once, "once", false, "Print one snapshot and exit")
	return cmd
}

func parseTargetArgs(args []string) ([]target, error) {
	list := make([]target, 0, len(args))
	for _, a := range args {
		t, err := targets.ParseTarget(a)
		if err != nil {
			return nil, output.ErrUsage(err.Error())
		}
		list = append(list, target(t))
	}
	return list, nil
}

func fromFile(f targets.File) []target {
	list := make([]target, len(f.Targets))
	for i, t := range f.Targets {
		list[i] = target(t)
	}
	return list
}

// watchMessages loads each target's info once and its series on every
// call.
func watchMessages(list []target, agg speedapi.Aggregation, r speedapi.Range) []store.Message {
	var msgs []store.Message
	for _, t := range list {
		ranged := []string{string(agg), r.Start, r.End}
		switch {
		case t.TransitIsp != "":
			msgs = append(msgs,
				state.FetchLocationClientIspInfo.FetchIfNeeded(t.Location, t.ClientIsp),
				state.FetchLocationTransitIspMetrics.Fetch(append([]string{t.Location, t.ClientIsp, t.TransitIsp}, ranged...)...))
		case t.ClientIsp != "":
			msgs = append(msgs,
				state.FetchLocationClientIspInfo.FetchIfNeeded(t.Location, t.ClientIsp),
				state.FetchLocationClientIspMetrics.Fetch(append([]string{t.Location, t.ClientIsp}, ranged...)...))
		default:
			msgs = append(msgs,
				state.FetchLocationInfo.FetchIfNeeded(t.Location),
				state.FetchLocationMetrics.Fetch(append([]string{t.Location}, ranged...)...))
		}
	}
	return msgs
}

// watchSummaries reads each target's summary out of the current state.
func watchSummaries(app *appctx.App, list []target) []map[string]any {
	s := app.State()
	rows := make([]map[string]any, 0, len(list))
	for _, t := range list {
		infoRes, seriesRes := t.read(s, viewSeries)
		m := summaryMap(app.Selectors, t.slot(viewSeries), t.info(infoRes), seriesRes, state.Status(infoRes, seriesRes))
		if err := seriesRes.Err; err != nil {
			m["error"] = output.AsError(err).Message
		} else if err := infoRes.Err; err != nil {
			m["error"] = output.AsError(err).Message
		}
		if !seriesRes.FetchedAt.IsZero() {
			m["fetched_at"] = seriesRes.FetchedAt
		}
		rows = append(rows, m)
	}
	return rows
}

func watchSnapshot(ctx context.Context, app *appctx.App, list []target, agg speedapi.Aggregation, r speedapi.Range) error {
	// Failures land in each row's error field.
	_ = fetchAll(ctx, app, watchMessages(list, agg, r)...)

	rows := watchSummaries(app, list)
	items := make([]store.Statuser, 0, len(list))
	s := app.State()
	for _, t := range list {
		infoRes, seriesRes := t.read(s, viewSeries)
		items = append(items, infoRes, seriesRes)
	}
	return app.OK(rows,
		output.WithEntity("location"),
		output.WithStatus(string(state.Status(items...))),
		output.WithSummary(fmt.Sprintf("%d targets (%s)", len(list), rangeLabel(r))),
	)
}

func runWatch(ctx context.Context, app *appctx.App, set *watchSet, file string, interval time.Duration, agg speedapi.Aggregation, r speedapi.Range) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	locale := localeFor(app)
	schema := presenter.LookupByName("location")

	model := tui.NewWatchModel(tui.WatchConfig{
		Title:    "speedviz watch · " + rangeLabel(r),
		Interval: interval,
		Rows: func() []tui.WatchRow {
			return watchRows(watchSummaries(app, set.get()), schema, locale)
		},
		Refresh: func() {
			for _, m := range watchMessages(set.get(), agg, r) {
				app.Store.Dispatch(m)
			}
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := app.Store.Subscribe(func() { p.Send(tui.StateChangedMsg{}) })
	defer unsubscribe()

	if file != "" {
		w, err := targets.Watch(ctx, file, func(f targets.File, err error) {
			if err != nil {
				return
			}
			list := fromFile(f)
			set.set(list)
			p.Send(tui.TargetsChangedMsg{Count: len(list)})
		}, targets.WithLogger(app.Logger))
		if err != nil {
			return err
		}
		defer w.Close()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchRows formats summaries for the view. Download is graded with the
// schema's rating.
func watchRows(summaries []map[string]any, schema *presenter.EntitySchema, locale presenter.Locale) []tui.WatchRow {
	format := func(m map[string]any, field string) string {
		v, ok := m[field]
		if !ok {
			return "-"
		}
		if schema == nil {
			return fmt.Sprint(v)
		}
		return presenter.FormatField(schema.Fields[field], v, locale)
	}

	rows := make([]tui.WatchRow, 0, len(summaries))
	for _, m := range summaries {
		row := tui.WatchRow{
			ID:       fmt.Sprint(m["id"]),
			Label:    fmt.Sprint(m["label"]),
			Status:   fmt.Sprint(m["status"]),
			Download: format(m, speedapi.MetricDownload),
			Upload:   format(m, speedapi.MetricUpload),
			Latency:  format(m, speedapi.MetricRTT),
		}
		if v, ok := m[speedapi.MetricDownload].(float64); ok && schema != nil {
			if rating := schema.Fields[speedapi.MetricDownload].Rating; rating != nil {
				row.Grade = rating.Grade(v)
			}
		}
		if t, ok := m["fetched_at"].(time.Time); ok {
			row.Updated = t
		}
		if e, ok := m["error"].(string); ok {
			row.Err = e
		}
		rows = append(rows, row)
	}
	return rows
}
