package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddAndListLinks(t *testing.T) {
	s := newTestStore(t)
	a, err := s.UpsertFile("/a.md", 1, 1, "")
	require.NoError(t, err)
	b, err := s.UpsertFile("/b.md", 1, 1, "")
	require.NoError(t, err)

	require.NoError(t, s.AddLink(a, b, "references"))

	links, err := s.ListLinks("/a*", "out", "")
	require.NoError(t, err)
	require.Len(t, links, 1)
	require.Equal(t, "/b.md", links[0].DstPath)
	require.Equal(t, "references", links[0].Type)

	backlinks, err := s.FindBacklinks("/b*")
	require.NoError(t, err)
	require.Len(t, backlinks, 1)
	require.Equal(t, "/a.md", backlinks[0].SrcPath)
}

func TestRemoveLink(t *testing.T) {
	s := newTestStore(t)
	a, err := s.UpsertFile("/a.md", 1, 1, "")
	require.NoError(t, err)
	b, err := s.UpsertFile("/b.md", 1, 1, "")
	require.NoError(t, err)
	require.NoError(t, s.AddLink(a, b, ""))

	require.NoError(t, s.RemoveLink(a, b, ""))

	links, err := s.ListLinks("/a*", "out", "")
	require.NoError(t, err)
	require.Empty(t, links)
}
