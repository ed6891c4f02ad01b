package watcher

import "time"

// pendingEvent is one path's latest coalesced event inside the debouncer.
type pendingEvent struct {
	Path     string
	OldPath  string
	NewPath  string
	Kind     Kind
	Priority Priority
	At       time.Time
}

// isRename reports whether this entry carries a reconstructed rename,
// processed as a single update against the store rather than an observed
// create/modify/delete.
func (e pendingEvent) isRename() bool {
	return e.OldPath != "" && e.NewPath != ""
}

// rawEvent is what the OS notification layer pushes onto the bounded
// queue feeding the worker, classified from a platform notification but
// not yet folded into the debouncer or remove tracker.
type rawEvent struct {
	Path string
	Kind Kind
	At   time.Time
}
