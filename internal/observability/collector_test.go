package observability

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSessionCollector_RecordRequest(t *testing.T) {
	c := NewSessionCollector()

	c.RecordRequest(RequestMetrics{
		Method:     "GET",
		URL:        "/locations/nyc/info",
		StatusCode: 200,
		Duration:   50 * time.Millisecond,
	})
	c.RecordRequest(RequestMetrics{
		Method:     "GET",
		URL:        "/locations/nyc/info",
		StatusCode: 304,
		Duration:   10 * time.Millisecond,
		FromCache:  true,
	})

	summary := c.Summary()
	if summary.TotalRequests != 2 {
		t.Errorf("expected 2 total requests, got %d", summary.TotalRequests)
	}
	if summary.CacheHits != 1 {
		t.Errorf("expected 1 cache hit, got %d", summary.CacheHits)
	}
	if summary.CacheMisses != 1 {
		t.Errorf("expected 1 cache miss, got %d", summary.CacheMisses)
	}
	if summary.TotalLatency != 60*time.Millisecond {
		t.Errorf("expected 60ms latency, got %s", summary.TotalLatency)
	}
}

func TestSessionCollector_RecordFetch(t *testing.T) {
	c := NewSessionCollector()

	c.RecordFetch(FetchMetrics{Resource: "LOCATION_INFO", FetchKey: "nyc"})
	c.RecordFetch(FetchMetrics{Resource: "LOCATION_TIME_SERIES", FetchKey: "nyc|day", Error: errors.New("boom")})

	summary := c.Summary()
	if summary.TotalFetches != 2 {
		t.Errorf("expected 2 fetches, got %d", summary.TotalFetches)
	}
	if summary.FailedFetches != 1 {
		t.Errorf("expected 1 failed fetch, got %d", summary.FailedFetches)
	}
}

func TestSessionCollector_Reset(t *testing.T) {
	c := NewSessionCollector()

	c.RecordRequest(RequestMetrics{Method: "GET", URL: "/test"})
	c.RecordFetch(FetchMetrics{Resource: "X"})
	c.RecordRetry(RetryMetrics{Method: "GET", URL: "/test", Attempt: 2})

	c.Reset()

	summary := c.Summary()
	if summary.TotalRequests != 0 || summary.TotalFetches != 0 || summary.TotalRetries != 0 {
		t.Errorf("expected zeroed summary after reset, got %+v", summary)
	}
}

func TestSessionCollector_Concurrent(t *testing.T) {
	c := NewSessionCollector()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c.RecordRequest(RequestMetrics{Method: "GET"})
		}()
		go func() {
			defer wg.Done()
			c.RecordFetch(FetchMetrics{Resource: "X"})
		}()
		go func() {
			defer wg.Done()
			c.RecordRetry(RetryMetrics{Attempt: 2})
		}()
	}
	wg.Wait()

	summary := c.Summary()
	if summary.TotalRequests != 50 || summary.TotalFetches != 50 || summary.TotalRetries != 50 {
		t.Errorf("unexpected counts: %+v", summary)
	}
}

func TestSessionMetrics_MapRoundTrip(t *testing.T) {
	start := time.Unix(100, 0)
	m := SessionMetrics{
		StartTime:     start,
		EndTime:       start.Add(1500 * time.Millisecond),
		TotalRequests: 3,
		CacheHits:     1,
		CacheMisses:   2,
		TotalFetches:  4,
		FailedFetches: 1,
		TotalRetries:  2,
		TotalLatency:  120 * time.Millisecond,
	}

	got := SessionMetricsFromMap(m.ToMap())
	if got.TotalRequests != 3 || got.CacheHits != 1 || got.TotalFetches != 4 || got.FailedFetches != 1 {
		t.Errorf("counts lost in round trip: %+v", got)
	}
	if got.TotalLatency != 120*time.Millisecond {
		t.Errorf("latency = %s", got.TotalLatency)
	}
	if got.EndTime.Sub(got.StartTime) != 1500*time.Millisecond {
		t.Errorf("elapsed = %s", got.EndTime.Sub(got.StartTime))
	}
}

func TestSessionMetricsFromMap_JSONNumbers(t *testing.T) {
	got := SessionMetricsFromMap(map[string]any{"requests": 7.0, "fetches": float64(2)})
	if got.TotalRequests != 7 || got.TotalFetches != 2 {
		t.Errorf("unexpected: %+v", got)
	}
}

func TestSessionMetrics_FormatParts(t *testing.T) {
	m := SessionMetrics{
		TotalFetches:  3,
		FailedFetches: 1,
		TotalRequests: 2,
		CacheHits:     1,
		TotalLatency:  42 * time.Millisecond,
	}
	want := []string{"3 fetches (1 failed)", "2 requests", "1 cached", "42ms"}
	got := m.FormatParts()
	if len(got) != len(want) {
		t.Fatalf("FormatParts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, got[i], want[i])
		}
	}

	if parts := (SessionMetrics{}).FormatParts(); len(parts) != 0 {
		t.Errorf("empty metrics should have no parts, got %v", parts)
	}
}
