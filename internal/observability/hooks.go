package observability

import (
	"context"
	"sync"
	"time"
)

// RequestInfo describes an outgoing HTTP request.
type RequestInfo struct {
	Method  string
	URL     string
	Attempt int
}

// RequestResult describes how an HTTP request ended.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	FromCache  bool
	Retryable  bool
	Error      error
}

// FetchInfo identifies one store fetch.
type FetchInfo struct {
	Resource  string
	FetchKey  string
	RequestID string
}

// Hooks receives fetch and request lifecycle events.
type Hooks interface {
	OnFetchStart(ctx context.Context, info FetchInfo) context.Context
	OnFetchEnd(ctx context.Context, info FetchInfo, err error, duration time.Duration)
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRetry(ctx context.Context, info RequestInfo, attempt int, err error)
}

var _ Hooks = (*CLIHooks)(nil)

// CLIHooks implements Hooks for CLI observability.
// It supports configurable verbosity levels:
//   - 0: Silent (collect stats only, no output)
//   - 1: Fetches only
//   - 2: Fetches + HTTP requests
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

// NewCLIHooks creates a new CLIHooks with the given verbosity level.
// If collector is nil, metrics are not collected.
// If writer is nil, no trace output is produced.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		writer:    writer,
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *CLIHooks) snapshot() (int, *SessionCollector, *TraceWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.writer
}

func (h *CLIHooks) OnFetchStart(ctx context.Context, info FetchInfo) context.Context {
	level, _, writer := h.snapshot()
	if level >= 1 && writer != nil {
		writer.WriteFetchStart(info)
	}
	return ctx
}

func (h *CLIHooks) OnFetchEnd(_ context.Context, info FetchInfo, err error, duration time.Duration) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordFetch(FetchMetrics{
			Resource:  info.Resource,
			FetchKey:  info.FetchKey,
			RequestID: info.RequestID,
			Duration:  duration,
			Error:     err,
		})
	}
	if level >= 1 && writer != nil {
		writer.WriteFetchEnd(info, err, duration)
	}
}

func (h *CLIHooks) OnRequestStart(ctx context.Context, info RequestInfo) context.Context {
	level, _, writer := h.snapshot()
	if level >= 2 && writer != nil {
		writer.WriteRequestStart(info)
	}
	return ctx
}

func (h *CLIHooks) OnRequestEnd(_ context.Context, info RequestInfo, result RequestResult) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRequest(RequestMetrics{
			Method:     info.Method,
			URL:        info.URL,
			Attempt:    info.Attempt,
			StatusCode: result.StatusCode,
			Duration:   result.Duration,
			FromCache:  result.FromCache,
			Retryable:  result.Retryable,
			Error:      result.Error,
		})
	}
	if level >= 2 && writer != nil {
		writer.WriteRequestEnd(info, result)
	}
}

func (h *CLIHooks) OnRetry(_ context.Context, info RequestInfo, attempt int, err error) {
	level, collector, writer := h.snapshot()
	if collector != nil {
		collector.RecordRetry(RetryMetrics{Method: info.Method, URL: info.URL, Attempt: attempt, Error: err})
	}
	if level >= 2 && writer != nil {
		writer.WriteRetry(info, attempt, err)
	}
}
