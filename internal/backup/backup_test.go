package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marlinhq/indexd/internal/store"
)

func newLiveStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "live.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, path
}

func TestCreateListPruneBackups(t *testing.T) {
	_, livePath := newLiveStore(t)
	mgr, err := New(livePath, filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	var created []Info
	for i := 0; i < 3; i++ {
		info, err := mgr.CreateBackup()
		require.NoError(t, err)
		created = append(created, info)
		time.Sleep(5 * time.Millisecond)
	}

	listed, err := mgr.ListBackups()
	require.NoError(t, err)
	require.Len(t, listed, 3)

	result, err := mgr.Prune(1)
	require.NoError(t, err)
	require.Len(t, result.Kept, 1)
	require.Len(t, result.Removed, 2)

	remaining, err := mgr.ListBackups()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, created[len(created)-1].ID, remaining[0].ID)
}

func TestCreateBackupCorrelationIDIsEphemeral(t *testing.T) {
	_, livePath := newLiveStore(t)
	mgr, err := New(livePath, filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	info, err := mgr.CreateBackup()
	require.NoError(t, err)
	require.NotEmpty(t, info.CorrelationID)

	listed, err := mgr.ListBackups()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, info.ID, listed[0].ID)
	require.Empty(t, listed[0].CorrelationID)
}

func TestListBackupsOrdersByEncodedFilenameTimestampNotMTime(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	// "older" encodes an earlier timestamp than "newer" in its filename,
	// but is written to disk second, so its mtime would sort it last if
	// ListBackups went by mtime instead of the encoded timestamp.
	older := filepath.Join(dir, "backup_2020-01-01_00-00-00_000000.db")
	newer := filepath.Join(dir, "backup_2024-06-01_00-00-00_000000.db")
	require.NoError(t, os.WriteFile(newer, []byte("x"), 0o644))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, os.WriteFile(older, []byte("x"), 0o644))

	mgr, err := New(filepath.Join(t.TempDir(), "live.db"), dir)
	require.NoError(t, err)

	listed, err := mgr.ListBackups()
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, filepath.Base(newer), listed[0].ID)
	require.Equal(t, filepath.Base(older), listed[1].ID)
}

func TestListBackupsFallsBackToMTimeForUnparseableName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup_not-a-timestamp.db"), []byte("x"), 0o644))

	mgr, err := New(filepath.Join(t.TempDir(), "live.db"), dir)
	require.NoError(t, err)

	listed, err := mgr.ListBackups()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.False(t, listed[0].Timestamp.IsZero())
}

func TestVerifyAndRestoreBackup(t *testing.T) {
	st, livePath := newLiveStore(t)
	_, err := st.UpsertFile("/a.txt", 1, 1, "")
	require.NoError(t, err)

	mgr, err := New(livePath, filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)

	info, err := mgr.CreateBackup()
	require.NoError(t, err)
	require.NoError(t, mgr.VerifyBackup(info.ID))

	_, err = st.UpsertFile("/b.txt", 1, 1, "")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	require.NoError(t, mgr.RestoreFromBackup(info.ID))

	restored, err := store.Open(livePath)
	require.NoError(t, err)
	defer restored.Close()

	_, err = restored.GetFile("/a.txt")
	require.NoError(t, err)
}
