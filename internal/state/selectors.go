package state

import (
	"time"

	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/store"
)

// Point is a record with its date parsed. All other fields are the
// record's own.
type Point struct {
	Time time.Time
	speedapi.Record
}

// HourBuckets groups records by hour of day. A nil slot has no records.
type HourBuckets [24][]speedapi.Record

// Extent is the [Min, Max] range of a metric. OK is false when no record
// carried the metric.
type Extent struct {
	Min, Max float64
	OK       bool
}

// DateExtent is the first and last point in time of a series.
type DateExtent struct {
	Start, End time.Time
	OK         bool
}

type extentKey struct {
	store.Identity
	metric string
}

// Selectors projects series resources into view shapes. The memos are
// exported so callers can share or inspect them; NewSelectors fills
// them in.
type Selectors struct {
	Series  *store.Memo[store.Identity, []Point]
	Hourly  *store.Memo[store.Identity, *HourBuckets]
	Extents *store.Memo[extentKey, Extent]
	Dates   *store.Memo[store.Identity, DateExtent]
}

// NewSelectors returns selectors with empty memos.
func NewSelectors() *Selectors {
	return &Selectors{
		Series:  store.NewMemo[store.Identity, []Point](),
		Hourly:  store.NewMemo[store.Identity, *HourBuckets](),
		Extents: store.NewMemo[extentKey, Extent](),
		Dates:   store.NewMemo[store.Identity, DateExtent](),
	}
}

var dateLayouts = []string{time.DateOnly, "2006-01", "2006", time.RFC3339, time.DateTime}

// ParseDate reads an API date. Unparseable dates give the zero time.
func ParseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// TimeSeries returns the records of r with dates parsed. The same slice
// is returned until r changes.
func (sel *Selectors) TimeSeries(slot string, r store.Resource[speedapi.Series]) []Point {
	return sel.Series.Get(slot, r.Identity(slot), func() []Point {
		points := make([]Point, len(r.Data.Results))
		for i, rec := range r.Data.Results {
			points[i] = Point{Time: ParseDate(rec.Date), Record: rec}
		}
		return points
	})
}

// GroupByHour buckets records into 24 hour-of-day slots, preserving input
// order within each slot. Records without a valid hour are dropped.
func GroupByHour(records []speedapi.Record) *HourBuckets {
	var out HourBuckets
	for _, rec := range records {
		h, ok := rec.HourOfDay()
		if !ok {
			continue
		}
		out[h] = append(out[h], rec)
	}
	return &out
}

// HourlyBuckets is the memoized GroupByHour of r.
func (sel *Selectors) HourlyBuckets(slot string, r store.Resource[speedapi.Series]) *HourBuckets {
	return sel.Hourly.Get(slot, r.Identity(slot), func() *HourBuckets {
		return GroupByHour(r.Data.Results)
	})
}

// MetricExtent returns the range of metric over records.
func MetricExtent(records []speedapi.Record, metric string) Extent {
	var e Extent
	for _, rec := range records {
		v, ok := rec.Metric(metric)
		if !ok {
			continue
		}
		if !e.OK {
			e = Extent{Min: v, Max: v, OK: true}
			continue
		}
		e.Min = min(e.Min, v)
		e.Max = max(e.Max, v)
	}
	return e
}

// Extent is the memoized MetricExtent of r.
func (sel *Selectors) Extent(slot string, r store.Resource[speedapi.Series], metric string) Extent {
	key := extentKey{Identity: r.Identity(slot), metric: metric}
	return sel.Extents.Get(slot+"/"+metric, key, func() Extent {
		return MetricExtent(r.Data.Results, metric)
	})
}

// CombinedExtent merges extents, ignoring empty ones.
func CombinedExtent(extents ...Extent) Extent {
	var out Extent
	for _, e := range extents {
		if !e.OK {
			continue
		}
		if !out.OK {
			out = e
			continue
		}
		out.Min = min(out.Min, e.Min)
		out.Max = max(out.Max, e.Max)
	}
	return out
}

// DateRange is the memoized date extent of r. Records with unparseable
// dates are skipped.
func (sel *Selectors) DateRange(slot string, r store.Resource[speedapi.Series]) DateExtent {
	return sel.Dates.Get(slot, r.Identity(slot), func() DateExtent {
		var d DateExtent
		for _, p := range sel.TimeSeries(slot, r) {
			if p.Time.IsZero() {
				continue
			}
			if !d.OK {
				d = DateExtent{Start: p.Time, End: p.Time, OK: true}
				continue
			}
			if p.Time.Before(d.Start) {
				d.Start = p.Time
			}
			if p.Time.After(d.End) {
				d.End = p.Time
			}
		}
		return d
	})
}

// Status merges the status of the given resources.
func Status(items ...store.Statuser) store.Status {
	return store.MergeStatus(items...)
}
