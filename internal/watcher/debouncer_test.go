package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebouncerMergeKeepsHighestPriority(t *testing.T) {
	d := NewDebouncer(50*time.Millisecond, nil)
	now := time.Now()

	d.AddEvent(pendingEvent{Path: "/a.txt", Kind: KindCreate, Priority: PriorityCreate, At: now})
	d.AddEvent(pendingEvent{Path: "/a.txt", Kind: KindModify, Priority: PriorityModify, At: now.Add(time.Millisecond)})

	require.Equal(t, 1, d.Len())
	batch := d.Flush()
	require.Len(t, batch, 1)
	require.Equal(t, PriorityCreate, batch[0].Priority)
}

func TestDebouncerDirectoryPurgesDescendants(t *testing.T) {
	isDir := func(p string) bool { return p == "/dir" }
	d := NewDebouncer(50*time.Millisecond, isDir)
	now := time.Now()

	d.AddEvent(pendingEvent{Path: "/dir/a.txt", Kind: KindCreate, Priority: PriorityCreate, At: now})
	d.AddEvent(pendingEvent{Path: "/dir/b.txt", Kind: KindCreate, Priority: PriorityCreate, At: now})
	require.Equal(t, 2, d.Len())

	d.AddEvent(pendingEvent{Path: "/dir", Kind: KindDelete, Priority: PriorityDelete, At: now})
	require.Equal(t, 1, d.Len())

	batch := d.Flush()
	require.Len(t, batch, 1)
	require.Equal(t, "/dir", batch[0].Path)
}

func TestDebouncerFlushOrdersByPriority(t *testing.T) {
	d := NewDebouncer(50*time.Millisecond, nil)
	now := time.Now()

	d.AddEvent(pendingEvent{Path: "/access.txt", Kind: KindModify, Priority: PriorityAccess, At: now})
	d.AddEvent(pendingEvent{Path: "/delete.txt", Kind: KindDelete, Priority: PriorityDelete, At: now})
	d.AddEvent(pendingEvent{Path: "/create.txt", Kind: KindCreate, Priority: PriorityCreate, At: now})
	d.AddEvent(pendingEvent{Path: "/modify.txt", Kind: KindModify, Priority: PriorityModify, At: now})

	batch := d.Flush()
	require.Len(t, batch, 4)
	for i := 1; i < len(batch); i++ {
		require.LessOrEqual(t, batch[i-1].Priority, batch[i].Priority)
	}
	require.Equal(t, "/create.txt", batch[0].Path)
}

func TestDebouncerFlushIsStableForEqualPriority(t *testing.T) {
	d := NewDebouncer(50*time.Millisecond, nil)
	now := time.Now()

	paths := []string{"/c.txt", "/a.txt", "/b.txt", "/e.txt", "/d.txt"}
	for _, p := range paths {
		d.AddEvent(pendingEvent{Path: p, Kind: KindModify, Priority: PriorityModify, At: now})
	}

	// Every flush of the same arrival order should yield the same order --
	// a plain Go map would make this assertion flaky across runs.
	first := d.Flush()
	require.Len(t, first, len(paths))

	for _, p := range paths {
		d.AddEvent(pendingEvent{Path: p, Kind: KindModify, Priority: PriorityModify, At: now})
	}
	second := d.Flush()
	require.Equal(t, first, second)
}

func TestDebouncerIsReadyToFlush(t *testing.T) {
	d := NewDebouncer(20*time.Millisecond, nil)
	require.False(t, d.IsReadyToFlush())
	time.Sleep(30 * time.Millisecond)
	require.True(t, d.IsReadyToFlush())
}
