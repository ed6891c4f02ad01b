package watcher

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRemoveTrackerMatchesCreateWithinWindow(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")

	rt := NewRemoveTracker()
	now := time.Now()
	rt.Record(oldPath, now)

	// oldPath no longer exists on disk by the time it is recorded (the OS
	// already removed it), so inodeKey falls back to a hash of the path on
	// both sides here -- the same degrade-to-path-hash behavior the
	// original design documents for when a real inode can't be resolved.
	got, matched := rt.MatchCreate(oldPath, now.Add(10*time.Millisecond), removeTrackerWindow)
	require.True(t, matched)
	require.Equal(t, oldPath, got)
}

func TestRemoveTrackerExpiresStaleEntries(t *testing.T) {
	rt := NewRemoveTracker()
	now := time.Now()
	rt.Record("/gone.txt", now)

	d := NewDebouncer(time.Hour, nil)
	rt.FlushExpired(now.Add(time.Second), time.Millisecond, d)

	require.Equal(t, 0, rt.Len())
	batch := d.Flush()
	require.Len(t, batch, 1)
	require.Equal(t, "/gone.txt", batch[0].Path)
	require.Equal(t, PriorityDelete, batch[0].Priority)
}

func TestRemoveTrackerMatchCreateOutsideWindowIsNotMatched(t *testing.T) {
	rt := NewRemoveTracker()
	now := time.Now()
	rt.Record("/old.txt", now)

	_, matched := rt.MatchCreate("/old.txt", now.Add(time.Second), removeTrackerWindow)
	require.False(t, matched)
	require.Equal(t, 0, rt.Len())
}
