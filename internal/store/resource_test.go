package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var metricsTypes = FetchTypes{Request: "M_REQUEST", Success: "M_SUCCESS", Fail: "M_FAIL"}

func act(typ, key string) Action {
	return Action{Type: typ, FetchKey: key}
}

func TestReduceResourceLifecycle(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	defer func() { now = orig }()

	var r Resource[[]int]

	r, changed := ReduceResource(r, act("M_REQUEST", "k1"), metricsTypes)
	require.True(t, changed)
	assert.Equal(t, StatusLoading, r.Status())
	assert.Equal(t, "k1", r.LastFetchKey)

	success := act("M_SUCCESS", "k1")
	success.Result = []int{1, 2}
	r, changed = ReduceResource(r, success, metricsTypes)
	require.True(t, changed)
	assert.Equal(t, StatusReady, r.Status())
	assert.Equal(t, []int{1, 2}, r.Data)
	assert.Equal(t, uint64(1), r.Version)
	assert.Equal(t, fixed, r.FetchedAt)
	assert.True(t, r.FreshFor("k1"))
	assert.False(t, r.ShouldFetch("k1"))
	assert.True(t, r.ShouldFetch("k2"))
}

func TestReduceResourceFailureKeepsData(t *testing.T) {
	r := Resource[[]int]{IsFetched: true, Data: []int{7}, LastFetchKey: "k1", Version: 3}
	boom := errors.New("boom")

	r, _ = ReduceResource(r, act("M_REQUEST", "k1"), metricsTypes)
	fail := act("M_FAIL", "k1")
	fail.Err = boom
	r, changed := ReduceResource(r, fail, metricsTypes)

	require.True(t, changed)
	assert.Equal(t, StatusError, r.Status())
	assert.Equal(t, []int{7}, r.Data)
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, uint64(3), r.Version)
	assert.True(t, r.ShouldFetch("k1"), "failed resources are refetchable")
}

func TestReduceResourceIgnoresSupersededResponses(t *testing.T) {
	var r Resource[[]int]
	r, _ = ReduceResource(r, act("M_REQUEST", "old"), metricsTypes)
	r, _ = ReduceResource(r, act("M_REQUEST", "new"), metricsTypes)

	stale := act("M_SUCCESS", "old")
	stale.Result = []int{0}
	r2, changed := ReduceResource(r, stale, metricsTypes)
	assert.False(t, changed)
	assert.Equal(t, r, r2)

	staleFail := act("M_FAIL", "old")
	staleFail.Err = errors.New("late")
	_, changed = ReduceResource(r, staleFail, metricsTypes)
	assert.False(t, changed)

	fresh := act("M_SUCCESS", "new")
	fresh.Result = []int{9}
	r, changed = ReduceResource(r, fresh, metricsTypes)
	assert.True(t, changed)
	assert.Equal(t, []int{9}, r.Data)
	assert.False(t, r.IsFetching)
}

func TestReduceResourceUnrelatedAction(t *testing.T) {
	r := Resource[[]int]{IsFetched: true, Data: []int{1}}
	r2, changed := ReduceResource(r, act("OTHER", ""), metricsTypes)
	assert.False(t, changed)
	assert.Equal(t, r, r2)
}

func TestReduceResourceWrongResultTypePanics(t *testing.T) {
	r, _ := ReduceResource(Resource[[]int]{}, act("M_REQUEST", "k"), metricsTypes)
	bad := act("M_SUCCESS", "k")
	bad.Result = "not a slice"
	assert.Panics(t, func() { ReduceResource(r, bad, metricsTypes) })
}

func TestResourceIdentityTracksVersion(t *testing.T) {
	r := Resource[[]int]{LastFetchKey: "k", Version: 2}
	assert.Equal(t, Identity{ID: "nyc", Key: "k", Version: 2}, r.Identity("nyc"))
}
