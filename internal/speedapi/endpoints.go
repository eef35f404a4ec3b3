package speedapi

import (
	"context"
	"net/url"
	"strings"

	"github.com/speedviz/speedviz/internal/store"
)

// Range bounds a time-ranged request. Dates are YYYY-MM-DD; empty bounds
// are omitted and the API picks its default window.
type Range struct {
	Start string
	End   string
}

func (r Range) params() url.Values {
	v := url.Values{}
	if r.Start != "" {
		v.Set("startdate", r.Start)
	}
	if r.End != "" {
		v.Set("enddate", r.End)
	}
	return v
}

// path joins escaped segments into an absolute API path.
func path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}

func getInfo(p string) store.Promise {
	return func(ctx context.Context, api store.Requester) (any, error) {
		var env envelope[any]
		if err := api.Get(ctx, p, nil, &env); err != nil {
			return nil, err
		}
		return InfoFromMeta(env.Meta), nil
	}
}

func getSeries(p string, r Range) store.Promise {
	return func(ctx context.Context, api store.Requester) (any, error) {
		var s Series
		if err := api.Get(ctx, p, r.params(), &s); err != nil {
			return nil, err
		}
		if s.Results == nil {
			s.Results = []Record{}
		}
		return s, nil
	}
}

func getInfoList(p string, params url.Values) store.Promise {
	return func(ctx context.Context, api store.Requester) (any, error) {
		var env envelope[[]map[string]any]
		if err := api.Get(ctx, p, params, &env); err != nil {
			return nil, err
		}
		out := make([]Info, 0, len(env.Results))
		for _, m := range env.Results {
			if meta, ok := m["meta"].(map[string]any); ok {
				m = meta
			}
			out = append(out, InfoFromMeta(m))
		}
		return out, nil
	}
}

// LocationInfo resolves to Info.
func LocationInfo(loc string) store.Promise {
	return getInfo(path("locations", loc, "info"))
}

// LocationMetrics resolves to Series.
func LocationMetrics(loc string, agg Aggregation, r Range) store.Promise {
	return getSeries(path("locations", loc, "time", string(agg), "metrics"), r)
}

// LocationHourly resolves to Series.
func LocationHourly(loc string, agg Aggregation, r Range) store.Promise {
	return getSeries(path("locations", loc, "time", string(agg), "hourly"), r)
}

// LocationTopClientIsps resolves to []Info.
func LocationTopClientIsps(loc string, r Range) store.Promise {
	return getInfoList(path("locations", loc, "clients", "top"), r.params())
}

// LocationClientIspInfo resolves to Info.
func LocationClientIspInfo(loc, isp string) store.Promise {
	return getInfo(path("locations", loc, "clients", isp, "info"))
}

// LocationClientIspMetrics resolves to Series.
func LocationClientIspMetrics(loc, isp string, agg Aggregation, r Range) store.Promise {
	return getSeries(path("locations", loc, "clients", isp, "time", string(agg), "metrics"), r)
}

// LocationClientIspHourly resolves to Series.
func LocationClientIspHourly(loc, isp string, agg Aggregation, r Range) store.Promise {
	return getSeries(path("locations", loc, "clients", isp, "time", string(agg), "hourly"), r)
}

// LocationTransitIspMetrics resolves to Series.
func LocationTransitIspMetrics(loc, isp, transit string, agg Aggregation, r Range) store.Promise {
	return getSeries(path("locations", loc, "clients", isp, "servers", transit, "time", string(agg), "metrics"), r)
}

// ClientIspInfo resolves to Info.
func ClientIspInfo(isp string) store.Promise {
	return getInfo(path("clients", isp, "info"))
}

// TransitIspInfo resolves to Info.
func TransitIspInfo(transit string) store.Promise {
	return getInfo(path("servers", transit, "info"))
}

// Search resolves to []Info.
func Search(kind SearchType, query string) store.Promise {
	return getInfoList(path(string(kind), "search"), url.Values{"q": {query}})
}
