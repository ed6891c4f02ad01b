package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkAndListAndClearDirty(t *testing.T) {
	s := newTestStore(t)
	id, err := s.UpsertFile("/a.txt", 1, 1, "")
	require.NoError(t, err)

	require.NoError(t, s.MarkDirty(id))
	require.NoError(t, s.MarkDirty(id)) // re-marking is idempotent, not duplicated

	dirty, err := s.ListDirty()
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	require.Equal(t, "/a.txt", dirty[0].Path)

	require.NoError(t, s.ClearDirty(id))
	dirty, err = s.ListDirty()
	require.NoError(t, err)
	require.Empty(t, dirty)
}

func TestTakeDirtyDrainsThenEmpties(t *testing.T) {
	s := newTestStore(t)
	id, err := s.UpsertFile("/a.txt", 1, 1, "")
	require.NoError(t, err)
	require.NoError(t, s.MarkDirty(id))

	first, err := s.TakeDirty()
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "/a.txt", first[0].Path)

	second, err := s.TakeDirty()
	require.NoError(t, err)
	require.Empty(t, second)
}
