package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// sensitiveParams are query parameter names scrubbed from trace output.
var sensitiveParams = map[string]bool{
	"access_token": true,
	"token":        true,
	"api_key":      true,
	"apikey":       true,
	"key":          true,
	"secret":       true,
}

// TraceWriter outputs human-readable trace information to stderr.
// It formats output with timestamps relative to session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a new TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a new TraceWriter that writes to the given writer.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{
		writer:    w,
		startTime: time.Now(),
	}
}

func (t *TraceWriter) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.startTime).Seconds()
	fmt.Fprintf(t.writer, "[%.3fs] "+format+"\n", append([]any{elapsed}, args...)...)
}

// WriteFetchStart writes a fetch start trace line.
// Format: [0.001s] Fetching LOCATION_INFO (nyc)
func (t *TraceWriter) WriteFetchStart(info FetchInfo) {
	t.printf("Fetching %s (%s)", info.Resource, info.FetchKey)
}

// WriteFetchEnd writes a fetch completion trace line.
func (t *TraceWriter) WriteFetchEnd(info FetchInfo, err error, duration time.Duration) {
	if err != nil {
		t.printf("Failed %s (%s): %v", info.Resource, info.FetchKey, err)
		return
	}
	t.printf("Fetched %s (%s) in %dms", info.Resource, info.FetchKey, duration.Milliseconds())
}

// WriteRequestStart writes a request start trace line.
// Sensitive query parameters are redacted.
func (t *TraceWriter) WriteRequestStart(info RequestInfo) {
	t.printf("  -> %s %s", info.Method, scrubURL(info.URL))
}

// WriteRequestEnd writes a request completion trace line.
func (t *TraceWriter) WriteRequestEnd(_ RequestInfo, result RequestResult) {
	switch {
	case result.Error != nil:
		t.printf("  <- ERROR: %v", result.Error)
	case result.FromCache:
		t.printf("  <- %d (cached)", result.StatusCode)
	default:
		t.printf("  <- %d (%dms)", result.StatusCode, result.Duration.Milliseconds())
	}
}

// WriteRetry writes a retry trace line.
func (t *TraceWriter) WriteRetry(_ RequestInfo, attempt int, err error) {
	t.printf("  RETRY #%d: %v", attempt, err)
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}

// scrubURL redacts sensitive query parameters from a URL for safe logging.
func scrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable URL]"
	}

	query := u.Query()
	modified := false
	for key := range query {
		if sensitiveParams[strings.ToLower(key)] {
			query.Set(key, "[REDACTED]")
			modified = true
		}
	}
	if !modified {
		return rawURL
	}

	u.RawQuery = query.Encode()
	return u.String()
}
