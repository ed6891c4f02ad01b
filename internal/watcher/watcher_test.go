package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marlinhq/indexd/internal/store"
)

func fastTestConfig() Config {
	cfg := DefaultConfig()
	cfg.DebounceMs = 20
	cfg.DrainTimeoutMs = 1000
	return cfg
}

func TestWatcherStateMachineTransitions(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, fastTestConfig())
	require.NoError(t, err)

	require.Equal(t, Initializing, w.currentState())

	require.NoError(t, w.Start())
	require.Equal(t, Watching, w.currentState())
	require.NoError(t, w.Start()) // idempotent from Watching

	require.NoError(t, w.Pause())
	require.Equal(t, Paused, w.currentState())
	require.NoError(t, w.Pause()) // idempotent from Paused

	require.NoError(t, w.Resume())
	require.Equal(t, Watching, w.currentState())
	require.NoError(t, w.Resume()) // idempotent from Watching

	require.NoError(t, w.Stop())
	require.Equal(t, Stopped, w.currentState())
	require.NoError(t, w.Stop()) // idempotent

	require.Error(t, w.Start())
	require.Error(t, w.Pause())
	require.Error(t, w.Resume())
}

func TestWatcherDetectsCreateAndAppliesRenameToStore(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, fastTestConfig())
	require.NoError(t, err)
	defer w.Stop()

	st, err := store.Open(filepath.Join(t.TempDir(), "idx.db"))
	require.NoError(t, err)
	defer st.Close()
	w.AttachStore(st)

	oldPath := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("hello"), 0o644))
	_, err = st.UpsertFile(oldPath, 5, time.Now().Unix(), "")
	require.NoError(t, err)

	require.NoError(t, w.Start())

	newPath := filepath.Join(root, "b.txt")
	require.NoError(t, os.Rename(oldPath, newPath))

	require.Eventually(t, func() bool {
		_, err := st.GetFile(newPath)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherStatusReportsWatchedPaths(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))

	w, err := New(root, fastTestConfig())
	require.NoError(t, err)
	defer w.Stop()

	status := w.Status()
	require.Equal(t, "initializing", status.State)
	require.GreaterOrEqual(t, len(status.WatchedPaths), 2)
}
