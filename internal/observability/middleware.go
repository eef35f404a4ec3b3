package observability

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/speedviz/speedviz/internal/store"
)

// TracerName names the tracer used for fetch spans.
const TracerName = "github.com/speedviz/speedviz/internal/store"

type inflightFetch struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	info  FetchInfo
}

// FetchObserver turns fetch lifecycle actions into hook calls, spans and
// debug logs. Fetches are matched by request ID.
type FetchObserver struct {
	hooks  Hooks
	tracer trace.Tracer
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]inflightFetch
}

// NewFetchObserver creates an observer. Any argument may be nil.
func NewFetchObserver(hooks Hooks, tracer trace.Tracer, logger *slog.Logger) *FetchObserver {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FetchObserver{
		hooks:    hooks,
		tracer:   tracer,
		logger:   logger,
		inflight: make(map[string]inflightFetch),
	}
}

// InFlight returns the number of fetches started but not yet settled.
func (o *FetchObserver) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}

// FetchMiddleware observes actions after the reducer has committed them.
// Install it after the promise middleware.
func FetchMiddleware[S any](o *FetchObserver) store.Middleware[S] {
	return func(store.MiddlewareAPI[S]) func(store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(m store.Message) any {
				result := next(m)
				if a, ok := m.(store.Action); ok {
					o.observe(a)
				}
				return result
			}
		}
	}
}

func (o *FetchObserver) observe(a store.Action) {
	switch a.Phase {
	case store.PhaseRequest:
		o.start(a)
	case store.PhaseSuccess:
		o.end(a, nil)
	case store.PhaseFailure:
		o.end(a, a.Err)
	}
}

func (o *FetchObserver) start(a store.Action) {
	info := FetchInfo{Resource: resourceName(a.Type), FetchKey: a.FetchKey, RequestID: a.RequestID}

	ctx := context.Background()
	if o.hooks != nil {
		ctx = o.hooks.OnFetchStart(ctx, info)
	}
	ctx, span := o.tracer.Start(ctx, "fetch "+info.Resource, trace.WithAttributes(
		attribute.String("speedviz.fetch_key", info.FetchKey),
		attribute.String("speedviz.request_id", info.RequestID),
	))

	o.mu.Lock()
	o.inflight[a.RequestID] = inflightFetch{ctx: ctx, span: span, start: time.Now(), info: info}
	o.mu.Unlock()

	o.logger.Debug("fetch started", "resource", info.Resource, "fetch_key", info.FetchKey, "request_id", info.RequestID)
}

func (o *FetchObserver) end(a store.Action, err error) {
	o.mu.Lock()
	f, ok := o.inflight[a.RequestID]
	delete(o.inflight, a.RequestID)
	o.mu.Unlock()
	if !ok {
		return
	}

	duration := time.Since(f.start)
	if err != nil {
		f.span.RecordError(err)
		f.span.SetStatus(codes.Error, err.Error())
		o.logger.Debug("fetch failed", "resource", f.info.Resource, "fetch_key", f.info.FetchKey, "error", err, "duration", duration)
	} else {
		f.span.SetStatus(codes.Ok, "")
		o.logger.Debug("fetch settled", "resource", f.info.Resource, "fetch_key", f.info.FetchKey, "duration", duration)
	}
	f.span.End()

	if o.hooks != nil {
		o.hooks.OnFetchEnd(f.ctx, f.info, err, duration)
	}
}

func resourceName(actionType string) string {
	for _, suffix := range []string{"_REQUEST", "_SUCCESS", "_FAIL"} {
		if name, ok := strings.CutSuffix(actionType, suffix); ok {
			return name
		}
	}
	return actionType
}
