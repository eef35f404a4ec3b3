package resilience

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkheadAcquireAndRelease(t *testing.T) {
	bh := NewBulkhead(NewStore(t.TempDir()), testHost, BulkheadConfig{MaxConcurrent: 2})

	ok, err := bh.Acquire()
	require.NoError(t, err)
	assert.True(t, ok)

	inUse, _ := bh.InUse()
	assert.Equal(t, 1, inUse)

	require.NoError(t, bh.Release())
	inUse, _ = bh.InUse()
	assert.Equal(t, 0, inUse)
}

func TestBulkheadRejectsWhenFull(t *testing.T) {
	store := NewStore(t.TempDir())

	// The parent process is alive and holds the only slot.
	state := NewState()
	state.Host(testHost).Bulkhead.ActivePIDs = []int{os.Getppid()}
	require.NoError(t, store.Save(state))

	bh := NewBulkhead(store, testHost, BulkheadConfig{MaxConcurrent: 1})
	ok, err := bh.Acquire()
	require.NoError(t, err)
	assert.False(t, ok)

	available, _ := bh.Available()
	assert.Equal(t, 0, available)
}

func TestBulkheadReapsDeadProcesses(t *testing.T) {
	store := NewStore(t.TempDir())

	state := NewState()
	state.Host(testHost).Bulkhead.ActivePIDs = []int{999999999}
	require.NoError(t, store.Save(state))

	bh := NewBulkhead(store, testHost, BulkheadConfig{MaxConcurrent: 1})
	ok, _ := bh.Acquire()
	assert.True(t, ok, "slot held by a dead process should be reclaimed")

	loaded, _ := store.Load()
	assert.Equal(t, []int{os.Getpid()}, loaded.Host(testHost).Bulkhead.ActivePIDs)
}

func TestBulkheadGoroutinesShareProcessSlot(t *testing.T) {
	bh := NewBulkhead(NewStore(t.TempDir()), testHost, BulkheadConfig{MaxConcurrent: 1})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := bh.Acquire()
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	inUse, _ := bh.InUse()
	assert.Equal(t, 1, inUse)

	for range 7 {
		require.NoError(t, bh.Release())
	}
	inUse, _ = bh.InUse()
	assert.Equal(t, 1, inUse, "slot is held until the last release")

	require.NoError(t, bh.Release())
	inUse, _ = bh.InUse()
	assert.Equal(t, 0, inUse)
}

func TestBulkheadReset(t *testing.T) {
	bh := NewBulkhead(NewStore(t.TempDir()), testHost, BulkheadConfig{})
	assert.Equal(t, 10, bh.config.MaxConcurrent)

	_, _ = bh.Acquire()
	require.NoError(t, bh.Reset())

	available, _ := bh.Available()
	assert.Equal(t, 10, available)
}

func TestBulkheadStatePIDHelpers(t *testing.T) {
	var b BulkheadState
	b.AddPID(1)
	b.AddPID(2)
	b.AddPID(1)
	assert.Equal(t, 2, b.Count())
	assert.True(t, b.HasPID(2))

	b.RemovePID(1)
	assert.Equal(t, []int{2}, b.ActivePIDs)
	b.RemovePID(42)
	assert.Equal(t, 1, b.Count())
}
