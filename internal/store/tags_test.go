package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureTagPathReusesSegments(t *testing.T) {
	s := newTestStore(t)

	leaf1, err := s.EnsureTagPath("Projects/Alpha")
	require.NoError(t, err)

	leaf2, err := s.EnsureTagPath("Projects/Beta")
	require.NoError(t, err)
	require.NotEqual(t, leaf1, leaf2)

	// Re-creating the same path resolves to the same leaf, not a duplicate.
	leaf1Again, err := s.EnsureTagPath("Projects/Alpha")
	require.NoError(t, err)
	require.Equal(t, leaf1, leaf1Again)
}

func TestTagFileAttachesAncestors(t *testing.T) {
	s := newTestStore(t)
	id, err := s.UpsertFile("/a.txt", 1, 1, "")
	require.NoError(t, err)

	require.NoError(t, s.TagFile(id, "Projects/Alpha/Drafts"))

	tags, err := s.ListFileTags(id)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Projects", "Projects/Alpha", "Projects/Alpha/Drafts"}, tags)
}

func TestUntagFileLeavesAncestors(t *testing.T) {
	s := newTestStore(t)
	id, err := s.UpsertFile("/a.txt", 1, 1, "")
	require.NoError(t, err)
	require.NoError(t, s.TagFile(id, "Projects/Alpha"))

	require.NoError(t, s.UntagFile(id, "Projects/Alpha"))

	tags, err := s.ListFileTags(id)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Projects"}, tags)
}

func TestSameNameDifferentParentsAreDistinctTags(t *testing.T) {
	s := newTestStore(t)
	a, err := s.EnsureTagPath("Projects/Alpha")
	require.NoError(t, err)
	b, err := s.EnsureTagPath("Docs/Alpha")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
