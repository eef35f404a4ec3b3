package commands

import (
	"fmt"
	"strconv"

	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/state"
	"github.com/speedviz/speedviz/internal/store"
)

// recordMap flattens a record for output. Absent metrics are omitted.
func recordMap(rec speedapi.Record) map[string]any {
	m := map[string]any{"date": rec.Date, "count": rec.Count}
	if rec.Hour != "" {
		m["hour"] = string(rec.Hour)
	}
	for _, name := range speedapi.Metrics {
		if name == speedapi.MetricCount {
			continue
		}
		if v, ok := rec.Metric(name); ok {
			m[name] = v
		}
	}
	return m
}

// seriesRows is the memoized series of r as output rows.
func seriesRows(sel *state.Selectors, slot string, r store.Resource[speedapi.Series]) []map[string]any {
	points := sel.TimeSeries(slot, r)
	rows := make([]map[string]any, len(points))
	for i, p := range points {
		rows[i] = recordMap(p.Record)
	}
	return rows
}

// hourlyRows averages each hour bucket of r. Hours with no records are
// left out.
func hourlyRows(sel *state.Selectors, slot string, r store.Resource[speedapi.Series]) []map[string]any {
	buckets := sel.HourlyBuckets(slot, r)
	var rows []map[string]any
	for h, recs := range buckets {
		if len(recs) == 0 {
			continue
		}
		row := map[string]any{"hour": fmt.Sprintf("%02d:00", h)}
		count := 0
		for _, rec := range recs {
			count += rec.Count
		}
		row["count"] = count
		for _, name := range []string{speedapi.MetricDownload, speedapi.MetricUpload, speedapi.MetricRTT} {
			if v, ok := mean(recs, name); ok {
				row[name] = v
			}
		}
		rows = append(rows, row)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows
}

func mean(recs []speedapi.Record, metric string) (float64, bool) {
	var sum float64
	n := 0
	for _, rec := range recs {
		if v, ok := rec.Metric(metric); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// latest returns the most recent dated record of the series.
func latest(points []state.Point) (speedapi.Record, bool) {
	var best state.Point
	found := false
	for _, p := range points {
		if p.Time.IsZero() {
			continue
		}
		if !found || p.Time.After(best.Time) {
			best, found = p, true
		}
	}
	return best.Record, found
}

// summaryMap describes an entity by its latest record and the series'
// date span. It is the shape of the location schema.
func summaryMap(sel *state.Selectors, slot string, info speedapi.Info, r store.Resource[speedapi.Series], status store.Status) map[string]any {
	m := map[string]any{
		"id":     info.ID,
		"label":  info.Label,
		"status": string(status),
	}
	if info.Type != "" {
		m["type"] = info.Type
	}

	points := sel.TimeSeries(slot, r)
	if rec, ok := latest(points); ok {
		for k, v := range recordMap(rec) {
			if k != "date" && k != "hour" && k != "count" {
				m[k] = v
			}
		}
	}
	total := 0
	for _, p := range points {
		total += p.Count
	}
	m["count"] = total

	if d := sel.DateRange(slot, r); d.OK {
		m["first_date"] = d.Start.Format("2006-01-02")
		m["last_date"] = d.End.Format("2006-01-02")
	}
	return m
}

// extentMap reports the memoized min and max of each metric.
func extentMap(sel *state.Selectors, slot string, r store.Resource[speedapi.Series]) map[string]any {
	out := map[string]any{}
	for _, name := range speedapi.Metrics {
		if e := sel.Extent(slot, r, name); e.OK {
			out[name] = map[string]float64{"min": e.Min, "max": e.Max}
		}
	}
	return out
}

func formatRange(e state.Extent, unit string) string {
	if !e.OK {
		return "n/a"
	}
	return strconv.FormatFloat(e.Min, 'f', 1, 64) + "-" + strconv.FormatFloat(e.Max, 'f', 1, 64) + " " + unit
}
