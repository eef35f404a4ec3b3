package recents

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func TestStore_AddAndGet(t *testing.T) {
	s := newTestStore(t)
	s.Add(Item{ID: "nauscaclaremont", Label: "Claremont", Type: TypeLocation})

	items := s.Get(TypeLocation)
	require.Len(t, items, 1)
	assert.Equal(t, "nauscaclaremont", items[0].ID)
	assert.Equal(t, "Claremont", items[0].Label)
	assert.False(t, items[0].UsedAt.IsZero())
	assert.Empty(t, s.Get(TypeClientIsp))
}

func TestStore_AddMovesExistingToFront(t *testing.T) {
	s := newTestStore(t)
	s.Add(Item{ID: "a", Label: "First", Type: TypeLocation})
	s.Add(Item{ID: "b", Type: TypeLocation})
	s.Add(Item{ID: "a", Label: "Updated", Type: TypeLocation})

	items := s.Get(TypeLocation)
	require.Len(t, items, 2, "should deduplicate by ID")
	assert.Equal(t, "Updated", items[0].Label)
	assert.Equal(t, []string{"a", "b"}, s.IDs(TypeLocation))
}

func TestStore_TrimsToMax(t *testing.T) {
	s := newTestStore(t)
	for i := range 15 {
		s.Add(Item{ID: string(rune('a' + i)), Type: TypeClientIsp})
	}
	ids := s.IDs(TypeClientIsp)
	require.Len(t, ids, 10)
	assert.Equal(t, "o", ids[0])
}

func TestStore_IgnoresIncompleteItems(t *testing.T) {
	s := newTestStore(t)
	s.Add(Item{ID: "", Type: TypeLocation})
	s.Add(Item{ID: "x"})
	assert.Empty(t, s.Get(TypeLocation))
}

func TestStore_Persists(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	s.Add(Item{ID: "AS7922", Label: "Comcast", Type: TypeClientIsp})
	require.NoError(t, s.LastError())

	reloaded := NewStore(dir)
	assert.Equal(t, []string{"AS7922"}, reloaded.IDs(TypeClientIsp))

	_, err := os.Stat(filepath.Join(dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	s.Add(Item{ID: "a", Type: TypeLocation})
	s.Add(Item{ID: "b", Type: TypeTransitIsp})

	s.Clear(TypeLocation)
	assert.Empty(t, s.Get(TypeLocation))
	assert.Len(t, s.Get(TypeTransitIsp), 1)

	s.Clear("")
	assert.Empty(t, s.Get(TypeTransitIsp))
}

func TestStore_CorruptFileIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0600))

	s := NewStore(dir)
	assert.Empty(t, s.Get(TypeLocation))
	s.Add(Item{ID: "a", Type: TypeLocation})
	assert.Len(t, s.Get(TypeLocation), 1)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	s.Add(Item{ID: "a", Type: TypeLocation})
	items := s.Get(TypeLocation)
	items[0].ID = "mutated"
	assert.Equal(t, "a", s.Get(TypeLocation)[0].ID)
}
