package state

import (
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/store"
)

var rangedArgs = []string{FieldAggregation, FieldStartDate, FieldEndDate}

func args(ids ...string) []string {
	return append(ids, rangedArgs...)
}

func rangeOf(f store.Fields) speedapi.Range {
	return speedapi.Range{Start: f[FieldStartDate], End: f[FieldEndDate]}
}

func aggOf(f store.Fields) speedapi.Aggregation {
	return speedapi.Aggregation(f[FieldAggregation])
}

// lookup finds an entry and applies pick to it. Missing entries fetch.
func lookup[E any](k *store.Keyed[E], f store.Fields, names []string, pick func(*E) bool) bool {
	id, ok := f.Join(store.KeySep, names...)
	if !ok {
		return true
	}
	e, ok := k.Get(id)
	if !ok {
		return true
	}
	return pick(e)
}

var (
	locationKey   = []string{FieldLocation}
	clientIspKey  = []string{FieldLocation, FieldClientIsp}
	transitIspKey = []string{FieldLocation, FieldClientIsp, FieldTransitIsp}
)

// FetchLocationInfo takes (locationId).
var FetchLocationInfo = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "LOCATION_",
	Key:        "INFO",
	Args:       locationKey,
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.Locations, f, locationKey, func(e *LocationEntry) bool {
			return e.Info.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.LocationInfo(f[FieldLocation])
	},
})

// FetchLocationMetrics takes (locationId, timeAggregation, startDate, endDate).
var FetchLocationMetrics = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "LOCATION_",
	Key:        "TIME_SERIES",
	Args:       args(FieldLocation),
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.Locations, f, locationKey, func(e *LocationEntry) bool {
			return e.Metrics.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.LocationMetrics(f[FieldLocation], aggOf(f), rangeOf(f))
	},
})

// FetchLocationHourly takes (locationId, timeAggregation, startDate, endDate).
var FetchLocationHourly = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "LOCATION_",
	Key:        "HOURLY",
	Args:       args(FieldLocation),
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.Locations, f, locationKey, func(e *LocationEntry) bool {
			return e.Hourly.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.LocationHourly(f[FieldLocation], aggOf(f), rangeOf(f))
	},
})

// FetchLocationTopClientIsps takes (locationId, startDate, endDate).
var FetchLocationTopClientIsps = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "LOCATION_",
	Key:        "TOP_CLIENT_ISPS",
	Args:       []string{FieldLocation, FieldStartDate, FieldEndDate},
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.Locations, f, locationKey, func(e *LocationEntry) bool {
			return e.TopClientIsps.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.LocationTopClientIsps(f[FieldLocation], rangeOf(f))
	},
})

// FetchLocationClientIspInfo takes (locationId, clientIspId).
var FetchLocationClientIspInfo = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "LOCATION_CLIENT_ISP_",
	Key:        "INFO",
	Args:       clientIspKey,
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.LocationClientIsps, f, clientIspKey, func(e *LocationClientIspEntry) bool {
			return e.Info.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.LocationClientIspInfo(f[FieldLocation], f[FieldClientIsp])
	},
})

// FetchLocationClientIspMetrics takes (locationId, clientIspId,
// timeAggregation, startDate, endDate).
var FetchLocationClientIspMetrics = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "LOCATION_CLIENT_ISP_",
	Key:        "TIME_SERIES",
	Args:       args(FieldLocation, FieldClientIsp),
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.LocationClientIsps, f, clientIspKey, func(e *LocationClientIspEntry) bool {
			return e.Metrics.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.LocationClientIspMetrics(f[FieldLocation], f[FieldClientIsp], aggOf(f), rangeOf(f))
	},
})

// FetchLocationClientIspHourly takes (locationId, clientIspId,
// timeAggregation, startDate, endDate).
var FetchLocationClientIspHourly = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "LOCATION_CLIENT_ISP_",
	Key:        "HOURLY",
	Args:       args(FieldLocation, FieldClientIsp),
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.LocationClientIsps, f, clientIspKey, func(e *LocationClientIspEntry) bool {
			return e.Hourly.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.LocationClientIspHourly(f[FieldLocation], f[FieldClientIsp], aggOf(f), rangeOf(f))
	},
})

// FetchLocationTransitIspMetrics takes (locationId, clientIspId,
// transitIspId, timeAggregation, startDate, endDate).
var FetchLocationTransitIspMetrics = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "LOCATION_TRANSIT_ISP_",
	Key:        "TIME_SERIES",
	Args:       args(FieldLocation, FieldClientIsp, FieldTransitIsp),
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.LocationTransitIsps, f, transitIspKey, func(e *LocationTransitIspEntry) bool {
			return e.Metrics.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.LocationTransitIspMetrics(f[FieldLocation], f[FieldClientIsp], f[FieldTransitIsp], aggOf(f), rangeOf(f))
	},
})

// FetchClientIspInfo takes (clientIspId).
var FetchClientIspInfo = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "CLIENT_ISP_",
	Key:        "INFO",
	Args:       []string{FieldClientIsp},
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.ClientIsps, f, []string{FieldClientIsp}, func(e *IspEntry) bool {
			return e.Info.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.ClientIspInfo(f[FieldClientIsp])
	},
})

// FetchTransitIspInfo takes (transitIspId).
var FetchTransitIspInfo = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "TRANSIT_ISP_",
	Key:        "INFO",
	Args:       []string{FieldTransitIsp},
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.TransitIsps, f, []string{FieldTransitIsp}, func(e *IspEntry) bool {
			return e.Info.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.TransitIspInfo(f[FieldTransitIsp])
	},
})

// FetchSearch takes (searchType, query). The fetch key is the query, so a
// new query for the same type supersedes the previous one.
var FetchSearch = store.NewFetcher(store.FetchDescriptor[*State]{
	TypePrefix: "SEARCH_",
	Key:        "RESULTS",
	Args:       []string{FieldSearchType, FieldQuery},
	KeyArgs:    []string{FieldQuery},
	ShouldFetch: func(s *State, f store.Fields, key string) bool {
		return lookup(s.Search, f, []string{FieldSearchType}, func(e *SearchEntry) bool {
			return e.Results.ShouldFetch(key)
		})
	},
	Promise: func(f store.Fields) store.Promise {
		return speedapi.Search(speedapi.SearchType(f[FieldSearchType]), f[FieldQuery])
	},
})
