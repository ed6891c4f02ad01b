package watcher

import (
	"hash/fnv"
	"time"
)

// removeEntry is one pending remove, keyed by a stable identity for the
// removed path so a later create of the same underlying file can be
// correlated into a synthesized rename.
type removeEntry struct {
	path string
	at   time.Time
}

// RemoveTracker implements the remove/create half of spec §4.G's rename
// reconstructor: a standalone remove is recorded under the real inode of
// the path if it can still be resolved (a race that occasionally wins on
// some filesystems), falling back to a hash of the path otherwise; a
// standalone create computes the key of its own path the same way (real
// inode if the path resolves, else the path hash) and, if an entry under
// that key is found within window, is reported as a rename instead of an
// independent create.
type RemoveTracker struct {
	entries map[uint64]removeEntry
}

// NewRemoveTracker returns an empty tracker.
func NewRemoveTracker() *RemoveTracker {
	return &RemoveTracker{entries: make(map[uint64]removeEntry)}
}

func pathHashKey(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64()
}

// Record notes that path was just removed, at time now.
func (t *RemoveTracker) Record(path string, now time.Time) {
	key, ok := inodeKey(path)
	if !ok {
		key = pathHashKey(path)
	}
	t.entries[key] = removeEntry{path: path, at: now}
}

// MatchCreate looks up path's identity against recorded removes; if a
// match is found within window, the original path is returned and the
// entry is consumed (matched exactly once). Entries older than window are
// not matched and are left for FlushExpired to report as true deletes.
func (t *RemoveTracker) MatchCreate(path string, now time.Time, window time.Duration) (oldPath string, matched bool) {
	key, ok := inodeKey(path)
	if !ok {
		key = pathHashKey(path)
	}
	entry, found := t.entries[key]
	if !found {
		return "", false
	}
	delete(t.entries, key)
	if now.Sub(entry.at) > window {
		return "", false
	}
	return entry.path, true
}

// FlushExpired reports every recorded remove older than window as a true
// delete into the debouncer, and forgets it.
func (t *RemoveTracker) FlushExpired(now time.Time, window time.Duration, d *Debouncer) {
	for key, entry := range t.entries {
		if now.Sub(entry.at) <= window {
			continue
		}
		d.AddEvent(pendingEvent{
			Path:     entry.path,
			Kind:     KindDelete,
			Priority: PriorityDelete,
			At:       entry.at,
		})
		delete(t.entries, key)
	}
}

// Len reports how many removes are currently awaiting a matching create.
func (t *RemoveTracker) Len() int {
	return len(t.entries)
}
