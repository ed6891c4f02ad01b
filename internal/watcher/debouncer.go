package watcher

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/trees/binaryheap"
)

// Debouncer coalesces a burst of events per path into one entry, flushing
// in priority order once its window has elapsed. It implements spec §4.F.
//
// The pending set is an emirpasic/gods linkedhashmap rather than a plain
// Go map so iteration during the directory-purge scan and when filling the
// flush heap visits paths in the order they were first queued: Go map
// iteration order is randomized per-run, which made flush ordering
// nondeterministic in tests. The priority heap below decides flush order;
// the linked-hash-map only removes that incidental Go-map nondeterminism.
type Debouncer struct {
	mu        sync.Mutex
	window    time.Duration
	pending   *linkedhashmap.Map
	lastFlush time.Time
	isDir     func(path string) bool
}

// NewDebouncer builds a Debouncer with the given coalescing window.
// isDir is consulted by AddEvent to decide whether an incoming path is a
// directory (in which case queued descendants are dropped); nil treats
// every path as a plain file.
func NewDebouncer(window time.Duration, isDir func(path string) bool) *Debouncer {
	if isDir == nil {
		isDir = func(string) bool { return false }
	}
	return &Debouncer{
		window:    window,
		pending:   linkedhashmap.New(),
		lastFlush: time.Now(),
		isDir:     isDir,
	}
}

// AddEvent records e, applying the directory-purge and merge-in-place
// rules from spec §4.F.
func (d *Debouncer) AddEvent(e pendingEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isDir(e.Path) {
		prefix := e.Path + "/"
		var toDrop []interface{}
		for _, k := range d.pending.Keys() {
			p := k.(string)
			if p != e.Path && len(p) > len(prefix) && p[:len(prefix)] == prefix {
				toDrop = append(toDrop, k)
			}
		}
		for _, k := range toDrop {
			d.pending.Remove(k)
		}
	}

	if v, ok := d.pending.Get(e.Path); ok {
		existing := v.(pendingEvent)
		if existing.Priority < e.Priority {
			e.Priority = existing.Priority
		}
		if e.OldPath == "" {
			e.OldPath = existing.OldPath
		}
		if e.NewPath == "" {
			e.NewPath = existing.NewPath
		}
	}
	d.pending.Put(e.Path, e)
}

// IsReadyToFlush reports whether the debounce window has elapsed since the
// last flush.
func (d *Debouncer) IsReadyToFlush() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Since(d.lastFlush) >= d.window
}

// Len reports how many distinct paths are currently pending.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Size()
}

// priorityComparator orders pendingEvents ascending by Priority, so
// binaryheap.Pop yields Create before Delete before Modify before Access,
// matching the commitNodeHeap pattern the pack uses for priority-ordered
// traversal.
func priorityComparator(a, b interface{}) int {
	pa, pb := a.(pendingEvent).Priority, b.(pendingEvent).Priority
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}

// Flush drains all pending entries, sorted ascending by priority, and
// resets the window's clock. binaryheap is not a stable heap, so entries
// of equal priority come out in an order fixed by the order they were
// queued, but not necessarily in that order.
func (d *Debouncer) Flush() []pendingEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	heap := binaryheap.NewWith(priorityComparator)
	for _, k := range d.pending.Keys() {
		v, _ := d.pending.Get(k)
		heap.Push(v.(pendingEvent))
	}
	d.pending = linkedhashmap.New()
	d.lastFlush = time.Now()

	out := make([]pendingEvent, 0, heap.Size())
	for {
		v, ok := heap.Pop()
		if !ok {
			break
		}
		out = append(out, v.(pendingEvent))
	}
	return out
}
