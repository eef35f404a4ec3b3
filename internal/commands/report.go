package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/speedviz/speedviz/internal/appctx"
	"github.com/speedviz/speedviz/internal/completion"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/presenter"
	"github.com/speedviz/speedviz/internal/richtext"
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/state"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	var rf rangeFlags
	var outFile string

	cmd := &cobra.Command{
		Use:   "report <location>",
		Short: "Write a markdown report for a location",
		Long: `Summarize a location as markdown: latest medians, metric ranges,
the hourly profile and the top client ISPs.

On a terminal the report is rendered; piped, it is plain markdown.

Examples:
  speedviz report nauscaclaremont
  speedviz report nauscaclaremont --start "last month" -o claremont.md`,
		Args:              cobra.ExactArgs(1),
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

			var md, status string
			err = withSpinner(cmd.Context(), app, "Fetching "+args[0], func(ctx context.Context) error {
				var err error
				md, status, err = buildReport(ctx, app, args[0], agg, r)
				return err
			})
			if err != nil {
				return err
			}

			if outFile != "" {
				if err := os.WriteFile(outFile, []byte(md), 0644); err != nil { //nolint:gosec // G306: a report is not secret
					return fmt.Errorf("write report: %w", err)
				}
				return app.OK(map[string]any{"path": outFile, "bytes": len(md)},
					output.WithStatus(status),
					output.WithSummary("Report written to "+outFile))
			}

			switch app.Output.EffectiveFormat() {
			case output.FormatStyled:
				rendered, err := richtext.RenderMarkdown(md)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
				return err
			case output.FormatMarkdown:
				_, err := fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}
			return app.OK(map[string]any{"location": args[0], "markdown": md},
				output.WithStatus(status),
				output.WithSummary("Report for "+args[0]))
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the markdown to a file")
	return cmd
}

func localeFor(app *appctx.App) presenter.Locale {
	if app.Config.Locale != "" {
		return presenter.NewLocale(app.Config.Locale)
	}
	return presenter.DetectLocale()
}

// buildReport loads the location and composes the report. Info and
// metrics are required; the hourly profile and top ISPs are best effort.
func buildReport(ctx context.Context, app *appctx.App, loc string, agg speedapi.Aggregation, r speedapi.Range) (string, string, error) {
	t := target{Location: loc}
	msgs, _ := t.fetches(viewSummary, agg, r)
	if err := fetchAll(ctx, app, msgs...); err != nil {
		return "", "", err
	}
	extraErr := fetchAll(ctx, app,
		state.FetchLocationHourly.FetchIfNeeded(loc, string(agg), r.Start, r.End),
		state.FetchLocationTopClientIsps.FetchIfNeeded(loc, r.Start, r.End),
	)

	s := app.State()
	entry := s.Location(loc)
	info := t.info(entry.Info)
	locale := localeFor(app)
	sel := app.Selectors
	slot := t.slot(viewSummary)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", info.Label)
	fmt.Fprintf(&b, "*%s, %s aggregation*\n\n", rangeLabel(r), agg)

	b.WriteString("## Latest\n")
	detail := summaryMap(sel, slot, info, entry.Metrics, entry.Status())
	if schema := presenter.LookupByName("location"); schema != nil {
		_ = presenter.RenderDetailMarkdown(&b, schema, detail, locale)
	}

	b.WriteString("\n## Ranges\n\n| Metric | Min | Max |\n| --- | --- | --- |\n")
	for _, name := range []string{speedapi.MetricDownload, speedapi.MetricUpload, speedapi.MetricRTT} {
		e := sel.Extent(slot, entry.Metrics, name)
		if !e.OK {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", metricLabel(name), locale.FormatDecimal(e.Min, 1), locale.FormatDecimal(e.Max, 1))
	}

	hourly := hourlyRows(sel, t.slot(viewHourly), entry.Hourly)
	if len(hourly) > 0 {
		b.WriteString("\n## By hour of day\n\n")
		if best, worst, ok := bestWorstHour(hourly); ok {
			fmt.Fprintf(&b, "Fastest around %s, slowest around %s.\n\n", best, worst)
		}
		if schema := presenter.LookupByName("hourly"); schema != nil {
			_ = presenter.RenderListMarkdown(&b, schema, hourly, locale)
		}
	}

	if top := entry.TopClientIsps.Data; len(top) > 0 {
		b.WriteString("\n## Top client ISPs\n\n")
		if schema := presenter.LookupByName("isp"); schema != nil {
			_ = presenter.RenderListMarkdown(&b, schema, infoRows(top, "client"), locale)
		}
	}

	if extraErr != nil {
		fmt.Fprintf(&b, "\n*Some sections are missing: %s*\n", output.AsError(extraErr).Message)
	}
	return b.String(), string(entry.Status()), nil
}

func metricLabel(name string) string {
	switch name {
	case speedapi.MetricDownload:
		return "Download (Mbps)"
	case speedapi.MetricUpload:
		return "Upload (Mbps)"
	case speedapi.MetricRTT:
		return "Latency (ms)"
	}
	return name
}

// bestWorstHour picks the hours with the highest and lowest mean download.
func bestWorstHour(rows []map[string]any) (best, worst string, ok bool) {
	var hi, lo float64
	for _, row := range rows {
		v, has := row[speedapi.MetricDownload].(float64)
		if !has {
			continue
		}
		hour, _ := row["hour"].(string)
		if !ok || v > hi {
			hi, best = v, hour
		}
		if !ok || v < lo {
			lo, worst = v, hour
		}
		ok = true
	}
	return best, worst, ok
}
