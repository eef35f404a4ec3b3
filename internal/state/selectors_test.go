package state

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/store"
)

func f64(v float64) *float64 { return &v }

func series(records ...speedapi.Record) store.Resource[speedapi.Series] {
	return store.Resource[speedapi.Series]{
		IsFetched:    true,
		LastFetchKey: "k",
		Version:      1,
		Data:         speedapi.Series{Results: records},
	}
}

func TestGroupByHour(t *testing.T) {
	in := []speedapi.Record{
		{Hour: "3", Date: "2020-01-01"},
		{Hour: "3", Date: "2020-01-02"},
	}
	got := GroupByHour(in)

	var want HourBuckets
	want[3] = in
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Errorf("GroupByHour mismatch (-want +got):\n%s", diff)
	}
	for h, slot := range got {
		if h != 3 {
			assert.Nil(t, slot, "hour %d", h)
		}
	}
}

func TestGroupByHourDropsInvalidHours(t *testing.T) {
	got := GroupByHour([]speedapi.Record{{Hour: "x"}, {Hour: "25"}, {Hour: ""}, {Hour: "0"}})
	assert.Len(t, got[0], 1)
	total := 0
	for _, slot := range got {
		total += len(slot)
	}
	assert.Equal(t, 1, total)
}

func TestTimeSeriesParsesDatesOnly(t *testing.T) {
	sel := NewSelectors()
	rec := speedapi.Record{Date: "2020-01-02", Count: 7, DownloadMbps: f64(10)}
	got := sel.TimeSeries("nyc", series(rec))

	want := []Point{{Time: time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), Record: rec}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TimeSeries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), ParseDate("2020-03"))
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), ParseDate("2020"))
	assert.True(t, ParseDate("nope").IsZero())
}

func TestSelectorsAreMemoized(t *testing.T) {
	sel := NewSelectors()
	r := series(speedapi.Record{Date: "2020-01-01", Hour: "1"})

	a := sel.TimeSeries("nyc", r)
	b := sel.TimeSeries("nyc", r)
	assert.Same(t, &a[0], &b[0], "unchanged input returns the same backing array")

	h1 := sel.HourlyBuckets("nyc", r)
	assert.Same(t, h1, sel.HourlyBuckets("nyc", r))

	r.Version++
	c := sel.TimeSeries("nyc", r)
	assert.NotSame(t, &a[0], &c[0], "a new version recomputes")
	assert.NotSame(t, h1, sel.HourlyBuckets("nyc", r))

	stats := sel.Series.Stats()
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 2, stats.Misses)
}

func TestMetricExtent(t *testing.T) {
	records := []speedapi.Record{
		{DownloadMbps: f64(5)},
		{},
		{DownloadMbps: f64(12)},
		{DownloadMbps: f64(-1)},
	}
	assert.Equal(t, Extent{Min: -1, Max: 12, OK: true}, MetricExtent(records, speedapi.MetricDownload))
	assert.Equal(t, Extent{}, MetricExtent(records, speedapi.MetricUpload))

	sel := NewSelectors()
	r := series(records...)
	assert.Equal(t, Extent{Min: -1, Max: 12, OK: true}, sel.Extent("x", r, speedapi.MetricDownload))
	assert.Equal(t, Extent{}, sel.Extent("x", r, speedapi.MetricUpload))
}

func TestCombinedExtent(t *testing.T) {
	got := CombinedExtent(Extent{}, Extent{Min: 2, Max: 4, OK: true}, Extent{Min: 1, Max: 3, OK: true})
	assert.Equal(t, Extent{Min: 1, Max: 4, OK: true}, got)
	assert.False(t, CombinedExtent().OK)
}

func TestDateRange(t *testing.T) {
	sel := NewSelectors()
	r := series(
		speedapi.Record{Date: "2020-02-01"},
		speedapi.Record{Date: "bad"},
		speedapi.Record{Date: "2020-01-15"},
	)
	got := sel.DateRange("x", r)
	assert.True(t, got.OK)
	assert.Equal(t, time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC), got.Start)
	assert.Equal(t, time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), got.End)

	assert.False(t, sel.DateRange("empty", series()).OK)
}

func TestStatusAcrossResources(t *testing.T) {
	ready := series()
	var pending store.Resource[speedapi.Info]
	assert.Equal(t, store.StatusPartiallyLoaded, Status(ready, pending))
	assert.Equal(t, store.StatusReady, Status(ready, ready))
}
