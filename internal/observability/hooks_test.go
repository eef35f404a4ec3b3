package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCLIHooks_SetLevel(t *testing.T) {
	h := NewCLIHooks(0, nil, nil)

	assert.Equal(t, 0, h.Level())

	h.SetLevel(2)
	assert.Equal(t, 2, h.Level())
}

func exercise(h *CLIHooks) {
	ctx := context.Background()
	fetch := FetchInfo{Resource: "LOCATION_INFO", FetchKey: "nyc", RequestID: "r1"}
	ctx = h.OnFetchStart(ctx, fetch)

	info := RequestInfo{Method: "GET", URL: "https://api.example.com/locations/nyc/info", Attempt: 1}
	ctx = h.OnRequestStart(ctx, info)
	h.OnRetry(ctx, info, 2, errors.New("connection reset"))
	h.OnRequestEnd(ctx, info, RequestResult{StatusCode: 200, Duration: 45 * time.Millisecond})

	h.OnFetchEnd(ctx, fetch, nil, 50*time.Millisecond)
}

func TestCLIHooks_Level0_Silent(t *testing.T) {
	var buf bytes.Buffer
	collector := NewSessionCollector()
	h := NewCLIHooks(0, collector, NewTraceWriterTo(&buf))

	exercise(h)

	assert.Equal(t, 0, buf.Len(), "expected no output at level 0")

	summary := collector.Summary()
	assert.Equal(t, 1, summary.TotalFetches)
	assert.Equal(t, 1, summary.TotalRequests)
	assert.Equal(t, 1, summary.TotalRetries)
}

func TestCLIHooks_Level1_FetchesOnly(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(1, nil, NewTraceWriterTo(&buf))

	exercise(h)

	out := buf.String()
	assert.Contains(t, out, "Fetching LOCATION_INFO (nyc)")
	assert.Contains(t, out, "Fetched LOCATION_INFO (nyc) in 50ms")
	assert.NotContains(t, out, "-> GET")
	assert.NotContains(t, out, "RETRY")
}

func TestCLIHooks_Level2_Requests(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHooks(2, nil, NewTraceWriterTo(&buf))

	exercise(h)

	out := buf.String()
	assert.Contains(t, out, "-> GET https://api.example.com/locations/nyc/info")
	assert.Contains(t, out, "<- 200 (45ms)")
	assert.Contains(t, out, "RETRY #2: connection reset")
}

func TestCLIHooks_NilWriterAndCollector(t *testing.T) {
	h := NewCLIHooks(2, nil, nil)
	assert.NotPanics(t, func() { exercise(h) })
}
