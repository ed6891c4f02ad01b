package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	id, err := s.UpsertFile("/a.md", 1, 1, "")
	require.NoError(t, err)

	collID, err := s.EnsureCollection("reading-list")
	require.NoError(t, err)
	require.NoError(t, s.AddFileToCollection(collID, id))

	members, err := s.ListCollection("reading-list")
	require.NoError(t, err)
	require.Equal(t, []string{"/a.md"}, members)

	names, err := s.ListCollections()
	require.NoError(t, err)
	require.Contains(t, names, "reading-list")

	require.NoError(t, s.RemoveFileFromCollection(collID, id))
	members, err = s.ListCollection("reading-list")
	require.NoError(t, err)
	require.Empty(t, members)
}
