package store

import (
	"testing"

	"github.com/marlinhq/indexd/internal/ferr"
	"github.com/stretchr/testify/require"
)

func TestSaveQueryListDeleteView(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveView("finance", "tag:Finance"))

	q, err := s.ViewQuery("finance")
	require.NoError(t, err)
	require.Equal(t, "tag:Finance", q)

	// Re-saving updates in place rather than erroring.
	require.NoError(t, s.SaveView("finance", "tag:Finance/Invoices"))
	q, err = s.ViewQuery("finance")
	require.NoError(t, err)
	require.Equal(t, "tag:Finance/Invoices", q)

	views, err := s.ListViews()
	require.NoError(t, err)
	require.Len(t, views, 1)

	require.NoError(t, s.DeleteView("finance"))
	_, err = s.ViewQuery("finance")
	require.True(t, ferr.Is(err, ferr.NotFound))
}
