// Package state is the speedviz state tree: keyed resource collections
// for locations, ISPs and searches, the fetchers that fill them, and
// memoized selectors over them.
package state

import (
	"github.com/speedviz/speedviz/internal/speedapi"
	"github.com/speedviz/speedviz/internal/store"
)

// Action field names.
const (
	FieldLocation    = "locationId"
	FieldClientIsp   = "clientIspId"
	FieldTransitIsp  = "transitIspId"
	FieldAggregation = "timeAggregation"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
	FieldSearchType  = "searchType"
	FieldQuery       = "query"
)

// LocationEntry holds everything fetched for one location.
type LocationEntry struct {
	ID            string
	Info          store.Resource[speedapi.Info]
	Metrics       store.Resource[speedapi.Series]
	Hourly        store.Resource[speedapi.Series]
	TopClientIsps store.Resource[[]speedapi.Info]
}

// LocationClientIspEntry is keyed location_clientIsp.
type LocationClientIspEntry struct {
	ID      string
	Info    store.Resource[speedapi.Info]
	Metrics store.Resource[speedapi.Series]
	Hourly  store.Resource[speedapi.Series]
}

// LocationTransitIspEntry is keyed location_clientIsp_transitIsp.
type LocationTransitIspEntry struct {
	ID      string
	Metrics store.Resource[speedapi.Series]
}

// IspEntry holds a client or transit ISP's info.
type IspEntry struct {
	ID   string
	Info store.Resource[speedapi.Info]
}

// SearchEntry is keyed by search type. Results.LastFetchKey is the query.
type SearchEntry struct {
	ID      string
	Results store.Resource[[]speedapi.Info]
}

// State is the root of the tree. It is never mutated; Reduce returns a
// new *State when something changed and the same pointer otherwise.
type State struct {
	Locations           *store.Keyed[LocationEntry]
	LocationClientIsps  *store.Keyed[LocationClientIspEntry]
	LocationTransitIsps *store.Keyed[LocationTransitIspEntry]
	ClientIsps          *store.Keyed[IspEntry]
	TransitIsps         *store.Keyed[IspEntry]
	Search              *store.Keyed[SearchEntry]
}

// New returns the empty tree.
func New() *State {
	return &State{}
}

// Location returns the entry for id, or a zero entry.
func (s *State) Location(id string) LocationEntry {
	if e, ok := s.Locations.Get(id); ok {
		return *e
	}
	return LocationEntry{ID: id}
}

// LocationClientIsp returns the entry for a location and client ISP.
func (s *State) LocationClientIsp(loc, isp string) LocationClientIspEntry {
	id := loc + store.KeySep + isp
	if e, ok := s.LocationClientIsps.Get(id); ok {
		return *e
	}
	return LocationClientIspEntry{ID: id}
}

// LocationTransitIsp returns the entry for a location, client ISP and
// transit ISP.
func (s *State) LocationTransitIsp(loc, isp, transit string) LocationTransitIspEntry {
	id := loc + store.KeySep + isp + store.KeySep + transit
	if e, ok := s.LocationTransitIsps.Get(id); ok {
		return *e
	}
	return LocationTransitIspEntry{ID: id}
}

// ClientIsp returns the client ISP entry for id.
func (s *State) ClientIsp(id string) IspEntry {
	if e, ok := s.ClientIsps.Get(id); ok {
		return *e
	}
	return IspEntry{ID: id}
}

// TransitIsp returns the transit ISP entry for id.
func (s *State) TransitIsp(id string) IspEntry {
	if e, ok := s.TransitIsps.Get(id); ok {
		return *e
	}
	return IspEntry{ID: id}
}

// SearchResults returns the search entry for kind.
func (s *State) SearchResults(kind speedapi.SearchType) SearchEntry {
	if e, ok := s.Search.Get(string(kind)); ok {
		return *e
	}
	return SearchEntry{ID: string(kind)}
}

// Status merges the status of every resource in the entry.
func (e LocationEntry) Status() store.Status {
	return store.MergeStatus(e.Info, e.Metrics, e.Hourly, e.TopClientIsps)
}

// Status merges the status of every resource in the entry.
func (e LocationClientIspEntry) Status() store.Status {
	return store.MergeStatus(e.Info, e.Metrics, e.Hourly)
}
