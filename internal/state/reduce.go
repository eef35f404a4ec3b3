package state

import (
	"github.com/speedviz/speedviz/internal/store"
)

// step reduces one resource in place and reports whether it changed.
func step[T any](r *store.Resource[T], a store.Action, types store.FetchTypes) bool {
	next, changed := store.ReduceResource(*r, a, types)
	if changed {
		*r = next
	}
	return changed
}

// owns reports whether a belongs to any of the fetchers.
func owns(a store.Action, fetchers ...*store.Fetcher[*State]) bool {
	for _, f := range fetchers {
		if f.Types.Has(a.Type) {
			return true
		}
	}
	return false
}

var locations = store.KeyedReducer[LocationEntry]{
	Fields: locationKey,
	Init:   func(id string) LocationEntry { return LocationEntry{ID: id} },
	Reduce: func(e *LocationEntry, a store.Action) *LocationEntry {
		next := *e
		if step(&next.Info, a, FetchLocationInfo.Types) ||
			step(&next.Metrics, a, FetchLocationMetrics.Types) ||
			step(&next.Hourly, a, FetchLocationHourly.Types) ||
			step(&next.TopClientIsps, a, FetchLocationTopClientIsps.Types) {
			return &next
		}
		return e
	},
}

var locationClientIsps = store.KeyedReducer[LocationClientIspEntry]{
	Fields: clientIspKey,
	Init:   func(id string) LocationClientIspEntry { return LocationClientIspEntry{ID: id} },
	Reduce: func(e *LocationClientIspEntry, a store.Action) *LocationClientIspEntry {
		next := *e
		if step(&next.Info, a, FetchLocationClientIspInfo.Types) ||
			step(&next.Metrics, a, FetchLocationClientIspMetrics.Types) ||
			step(&next.Hourly, a, FetchLocationClientIspHourly.Types) {
			return &next
		}
		return e
	},
}

var locationTransitIsps = store.KeyedReducer[LocationTransitIspEntry]{
	Fields: transitIspKey,
	Init:   func(id string) LocationTransitIspEntry { return LocationTransitIspEntry{ID: id} },
	Reduce: func(e *LocationTransitIspEntry, a store.Action) *LocationTransitIspEntry {
		next := *e
		if step(&next.Metrics, a, FetchLocationTransitIspMetrics.Types) {
			return &next
		}
		return e
	},
}

func ispReducer(field string, fetcher *store.Fetcher[*State]) store.KeyedReducer[IspEntry] {
	return store.KeyedReducer[IspEntry]{
		Fields: []string{field},
		Init:   func(id string) IspEntry { return IspEntry{ID: id} },
		Reduce: func(e *IspEntry, a store.Action) *IspEntry {
			next := *e
			if step(&next.Info, a, fetcher.Types) {
				return &next
			}
			return e
		},
	}
}

var (
	clientIsps  = ispReducer(FieldClientIsp, FetchClientIspInfo)
	transitIsps = ispReducer(FieldTransitIsp, FetchTransitIspInfo)
)

var searches = store.KeyedReducer[SearchEntry]{
	Fields: []string{FieldSearchType},
	Init:   func(id string) SearchEntry { return SearchEntry{ID: id} },
	Reduce: func(e *SearchEntry, a store.Action) *SearchEntry {
		next := *e
		if step(&next.Results, a, FetchSearch.Types) {
			return &next
		}
		return e
	},
}

// Reduce is the root reducer. Actions only reach the collection whose
// fetchers produced them, so a location+ISP action never creates a bare
// location entry.
func Reduce(s *State, a store.Action) *State {
	if s == nil {
		s = New()
	}
	next := *s

	switch {
	case owns(a, FetchLocationInfo, FetchLocationMetrics, FetchLocationHourly, FetchLocationTopClientIsps):
		next.Locations = locations.Apply(s.Locations, a)
	case owns(a, FetchLocationClientIspInfo, FetchLocationClientIspMetrics, FetchLocationClientIspHourly):
		next.LocationClientIsps = locationClientIsps.Apply(s.LocationClientIsps, a)
	case owns(a, FetchLocationTransitIspMetrics):
		next.LocationTransitIsps = locationTransitIsps.Apply(s.LocationTransitIsps, a)
	case owns(a, FetchClientIspInfo):
		next.ClientIsps = clientIsps.Apply(s.ClientIsps, a)
	case owns(a, FetchTransitIspInfo):
		next.TransitIsps = transitIsps.Apply(s.TransitIsps, a)
	case owns(a, FetchSearch):
		next.Search = searches.Apply(s.Search, a)
	default:
		return s
	}

	if next == *s {
		return s
	}
	return &next
}
