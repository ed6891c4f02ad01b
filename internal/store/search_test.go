package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildFTSMatchTagPrefix(t *testing.T) {
	got := buildFTSMatch("tag:Projects/Alpha")
	require.Equal(t, "tags_text:Projects AND tags_text:Alpha", got)
}

func TestBuildFTSMatchAttrPrefix(t *testing.T) {
	got := buildFTSMatch("attr:status=final")
	require.Equal(t, "attrs_text:status AND attrs_text:final", got)
}

func TestBuildFTSMatchPassesOperatorsThrough(t *testing.T) {
	got := buildFTSMatch("invoice AND NOT draft")
	require.Equal(t, "invoice AND NOT draft", got)
}

func TestEscapeFTSTermQuotesReservedWords(t *testing.T) {
	require.Equal(t, `"AND"`, escapeFTSTerm("AND"))
	require.Equal(t, "plain", escapeFTSTerm("plain"))
	require.Equal(t, `"has space"`, escapeFTSTerm("has space"))
	require.Equal(t, `"with""quote"`, escapeFTSTerm(`with"quote`))
}

func TestSearchMatchesTagAndFallsBackToSubstring(t *testing.T) {
	s := newTestStore(t)
	id, err := s.UpsertFile("/notes/invoice-draft.txt", 1, 1, "")
	require.NoError(t, err)
	require.NoError(t, s.TagFile(id, "Finance/Invoices"))

	hits, err := s.Search("tag:Finance/Invoices")
	require.NoError(t, err)
	require.Contains(t, hits, "/notes/invoice-draft.txt")

	// A partial word matches no FTS token, so Search falls back to a
	// substring scan over indexed paths.
	hits, err = s.Search("nvoice-dr")
	require.NoError(t, err)
	require.Contains(t, hits, "/notes/invoice-draft.txt")
}
