package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAppliesAllMigrations(t *testing.T) {
	s := newTestStore(t)

	v, err := SchemaVersion(s.Conn())
	require.NoError(t, err)
	require.EqualValues(t, 4, v)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	v, err := SchemaVersion(s2.Conn())
	require.NoError(t, err)
	require.EqualValues(t, 4, v)
}

func TestOpenRefusesNewerRecordedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Conn().Exec(
		"INSERT INTO schema_version (version, applied_on) VALUES (?, ?)", 999, "2099-01-01T00:00:00Z")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
}
