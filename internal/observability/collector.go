// Package observability provides metrics collection and tracing for
// fetches and HTTP requests.
package observability

import (
	"fmt"
	"sync"
	"time"
)

// RequestMetrics holds timing and status information for a single HTTP request.
type RequestMetrics struct {
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Duration   time.Duration
	FromCache  bool
	Retryable  bool
	Error      error
}

// FetchMetrics describes one settled store fetch (REQUEST to SUCCESS/FAIL).
type FetchMetrics struct {
	Resource  string // action type without the phase suffix
	FetchKey  string
	RequestID string
	Duration  time.Duration
	Error     error
}

// RetryMetrics records a retry event.
type RetryMetrics struct {
	Method  string
	URL     string
	Attempt int
	Error   error
}

// SessionMetrics aggregates metrics for an entire CLI session.
type SessionMetrics struct {
	StartTime     time.Time
	EndTime       time.Time
	TotalRequests int
	CacheHits     int
	CacheMisses   int
	TotalFetches  int
	FailedFetches int
	TotalRetries  int
	TotalLatency  time.Duration
}

// SessionCollector accumulates metrics across a CLI session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime     time.Time
	totalRequests int
	cacheHits     int
	cacheMisses   int
	totalFetches  int
	failedFetches int
	totalRetries  int
	totalLatency  time.Duration
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
	}
}

// RecordRequest records metrics for an HTTP request.
func (c *SessionCollector) RecordRequest(m RequestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.totalLatency += m.Duration
	if m.FromCache {
		c.cacheHits++
	} else {
		c.cacheMisses++
	}
}

// RecordFetch records a settled fetch.
func (c *SessionCollector) RecordFetch(m FetchMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalFetches++
	if m.Error != nil {
		c.failedFetches++
	}
}

// RecordRetry records a retry event.
func (c *SessionCollector) RecordRetry(_ RetryMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:     c.startTime,
		EndTime:       time.Now(),
		TotalRequests: c.totalRequests,
		CacheHits:     c.cacheHits,
		CacheMisses:   c.cacheMisses,
		TotalFetches:  c.totalFetches,
		FailedFetches: c.failedFetches,
		TotalRetries:  c.totalRetries,
		TotalLatency:  c.totalLatency,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalRequests = 0
	c.cacheHits = 0
	c.cacheMisses = 0
	c.totalFetches = 0
	c.failedFetches = 0
	c.totalRetries = 0
	c.totalLatency = 0
}

// ToMap flattens the metrics for the response meta block.
func (m SessionMetrics) ToMap() map[string]any {
	return map[string]any{
		"requests":       m.TotalRequests,
		"cache_hits":     m.CacheHits,
		"cache_misses":   m.CacheMisses,
		"fetches":        m.TotalFetches,
		"failed_fetches": m.FailedFetches,
		"retries":        m.TotalRetries,
		"latency_ms":     m.TotalLatency.Milliseconds(),
		"elapsed_ms":     m.EndTime.Sub(m.StartTime).Milliseconds(),
	}
}

// SessionMetricsFromMap reverses ToMap. Values may be ints or JSON
// numbers; missing keys are zero.
func SessionMetricsFromMap(m map[string]any) SessionMetrics {
	num := func(key string) int64 {
		switch v := m[key].(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
		return 0
	}
	end := time.Unix(0, 0)
	return SessionMetrics{
		StartTime:     end.Add(-time.Duration(num("elapsed_ms")) * time.Millisecond),
		EndTime:       end,
		TotalRequests: int(num("requests")),
		CacheHits:     int(num("cache_hits")),
		CacheMisses:   int(num("cache_misses")),
		TotalFetches:  int(num("fetches")),
		FailedFetches: int(num("failed_fetches")),
		TotalRetries:  int(num("retries")),
		TotalLatency:  time.Duration(num("latency_ms")) * time.Millisecond,
	}
}

// FormatParts renders the non-zero metrics as short labelled parts.
func (m SessionMetrics) FormatParts() []string {
	var parts []string
	if m.TotalFetches > 0 {
		s := fmt.Sprintf("%d fetches", m.TotalFetches)
		if m.FailedFetches > 0 {
			s += fmt.Sprintf(" (%d failed)", m.FailedFetches)
		}
		parts = append(parts, s)
	}
	if m.TotalRequests > 0 {
		parts = append(parts, fmt.Sprintf("%d requests", m.TotalRequests))
	}
	if m.CacheHits > 0 {
		parts = append(parts, fmt.Sprintf("%d cached", m.CacheHits))
	}
	if m.TotalRetries > 0 {
		parts = append(parts, fmt.Sprintf("%d retries", m.TotalRetries))
	}
	if m.TotalLatency > 0 {
		parts = append(parts, fmt.Sprintf("%dms", m.TotalLatency.Milliseconds()))
	}
	return parts
}
