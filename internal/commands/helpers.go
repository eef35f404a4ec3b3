package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/dateparse"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/store"
	"github.com/speedviz/speedviz/internal/tui"
)

const dateHint = `Use YYYY-MM-DD, YYYY-MM, today, yesterday, "30 days ago", "last month" or a weekday`

// rangeFlags are the --agg, --start and --end flags of ranged commands.
type rangeFlags struct {
	agg   string
	start string
	end   string

	// defaultStart applies when --start is not given.
	defaultStart string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.agg, "agg", "", "Time aggregation: day, month or year (default from config)")
	f.registerDates(cmd)
}

func (f *rangeFlags) registerDates(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "Start date, e.g. 2024-01-01 or \"30 days ago\"")
	cmd.Flags().StringVar(&f.end, "end", "", "End date (default today)")
}

// resolve validates the flags, falling back to the configured aggregation.
func (f rangeFlags) resolve(app *appctx.App) (speedapi.Aggregation, speedapi.Range, error) {
	raw := f.agg
	if raw == "" {
		raw = app.Config.TimeAggregation
	}
	agg, err := speedapi.ParseAggregation(raw)
	if err != nil {
		return "", speedapi.Range{}, output.ErrUsageHint(err.Error(), "Use --agg day, month or year")
	}

	startRaw := f.start
	if startRaw == "" {
		startRaw = f.defaultStart
	}
	start, err := parseDateFlag("start", startRaw)
	if err != nil {
		return "", speedapi.Range{}, err
	}
	end, err := parseDateFlag("end", f.end)
	if err != nil {
		return "", speedapi.Range{}, err
	}
	// Dates are YYYY-MM-DD, so string order is date order.
	if start != "" && end != "" && start > end {
		return "", speedapi.Range{}, output.ErrUsage(fmt.Sprintf("--start %s is after --end %s", start, end))
	}
	return agg, speedapi.Range{Start: start, End: end}, nil
}

func parseDateFlag(name, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if !dateparse.IsValid(value) {
		return "", output.ErrUsageHint(fmt.Sprintf("invalid --%s date %q", name, value), dateHint)
	}
	return dateparse.Parse(value), nil
}

// fetchAll dispatches every message before waiting on any, so requests
// run concurrently. It returns the first error.
func fetchAll(ctx context.Context, app *appctx.App, msgs ...store.Message) error {
	pending := make([]any, len(msgs))
	for i, m := range msgs {
		pending[i] = app.Store.Dispatch(m)
	}
	var firstErr error
	for _, p := range pending {
		if _, err := store.Await(ctx, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func rangeLabel(r speedapi.Range) string {
	switch {
	case r.Start != "" && r.End != "":
		return r.Start + " to " + r.End
	case r.Start != "":
		return "since " + r.Start
	case r.End != "":
		return "until " + r.End
	}
	return "default window"
}

// withSpinner runs fn behind a spinner on interactive terminals.
func withSpinner(ctx context.Context, app *appctx.App, message string, fn func(context.Context) error) error {
	if !app.IsInteractive() {
		return fn(ctx)
	}
	return tui.NewSpinner(message).Run(ctx, fn)
}
