package store

// Status is the coarse, UI-facing classification of a resource's fetch state.
type Status string

const (
	StatusUnknown         Status = "unknown"
	StatusLoading         Status = "loading"
	StatusReady           Status = "ready"
	StatusError           Status = "error"
	StatusPartiallyLoaded Status = "partially-loaded"
)

// Status lets a raw status value take part in MergeStatus.
func (s Status) Status() Status {
	if s == "" {
		return StatusUnknown
	}
	return s
}

// Statuser is anything that can be classified: a raw Status or a resource.
type Statuser interface {
	Status() Status
}

// ResourceLike is the minimal view of a resource needed to classify it.
type ResourceLike interface {
	Fetching() bool
	Fetched() bool
	Failure() error
}

// StatusOf classifies a single resource.
// Precedence is loading > ready > error > unknown.
func StatusOf(r ResourceLike) Status {
	switch {
	case r.Fetching():
		return StatusLoading
	case r.Fetched():
		return StatusReady
	case r.Failure() != nil:
		return StatusError
	default:
		return StatusUnknown
	}
}

// MergeStatus folds many statuses into one.
//
// Any error wins, then any loading. If every item is ready the set is
// ready; a mix of ready (or partially loaded) and anything else is
// partially loaded. An empty set is unknown.
func MergeStatus(items ...Statuser) Status {
	if len(items) == 0 {
		return StatusUnknown
	}

	hasLoading, hasReady, hasPartial := false, false, false
	allReady := true
	for _, item := range items {
		switch item.Status() {
		case StatusError:
			return StatusError
		case StatusLoading:
			hasLoading = true
			allReady = false
		case StatusReady:
			hasReady = true
		case StatusPartiallyLoaded:
			hasPartial = true
			allReady = false
		default:
			allReady = false
		}
	}

	switch {
	case hasLoading:
		return StatusLoading
	case allReady:
		return StatusReady
	case hasReady || hasPartial:
		return StatusPartiallyLoaded
	default:
		return StatusUnknown
	}
}

// MergeStatuses is MergeStatus for a homogeneous slice.
func MergeStatuses[T Statuser](items []T) Status {
	s := make([]Statuser, len(items))
	for i, item := range items {
		s[i] = item
	}
	return MergeStatus(s...)
}
