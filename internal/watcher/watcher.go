package watcher

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marlinhq/indexd/internal/ferr"
	"github.com/marlinhq/indexd/internal/pathutil"
	"github.com/marlinhq/indexd/internal/store"
)

// Status is the telemetry DTO returned by FileWatcher.Status, matching the
// shape of the control plane's JSON status reply (spec §4.I/§6).
type Status struct {
	State          string
	EventsProcessed uint64
	QueueSize       int
	StartTime       time.Time
	WatchedPaths    []string
}

// UptimeSecs reports elapsed seconds since the watcher started.
func (s Status) UptimeSecs() float64 {
	return time.Since(s.StartTime).Seconds()
}

// FileWatcher is the OS-notification-driven pipeline of spec §4.H: a
// bounded queue feeds a single worker goroutine, which runs the debouncer
// and rename reconstructor and materializes renames against an attached
// store.
type FileWatcher struct {
	fsw    *fsnotify.Watcher
	config Config

	queue chan rawEvent

	debouncer     *Debouncer
	removeTracker *RemoveTracker

	// pendingRenameFrom holds the most recent unconsumed fsnotify Rename
	// op's path, read and written only from the worker goroutine. fsnotify
	// delivers a plain move as Rename(old) immediately followed by
	// Create(new) with no correlating id, so the pairing here is purely
	// sequential rather than inode-keyed -- see processRaw.
	pendingRenameFrom   string
	pendingRenameFromAt time.Time

	stateMu  sync.Mutex
	state    State
	poisoned bool

	eventsProcessed atomic.Uint64

	startTime time.Time
	dirsMu    sync.Mutex
	dirs      map[string]bool

	storeMu sync.Mutex
	st      *store.Store

	workerDone chan struct{}
	stopOnce   sync.Once
}

// New builds a watcher rooted at root, recursively adding every directory
// under it (fsnotify, unlike notify-rs, is not recursive by itself) to the
// underlying OS notifier.
func New(root string, cfg Config) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferr.Wrap(ferr.Watch, err, "create OS notifier")
	}

	w := &FileWatcher{
		fsw:           fsw,
		config:        cfg,
		queue:         make(chan rawEvent, cfg.MaxQueueSize),
		removeTracker: NewRemoveTracker(),
		state:         Initializing,
		dirs:          make(map[string]bool),
		workerDone:    make(chan struct{}),
	}
	w.debouncer = NewDebouncer(cfg.debounceWindow(), w.isWatchedDir)

	if err := w.addTreeRecursively(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// isWatchedDir reports whether path is one of the directories this
// watcher added a notifier watch for.
func (w *FileWatcher) isWatchedDir(path string) bool {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	return w.dirs[path]
}

// addTreeRecursively walks root and registers a watch on every directory
// found, in the manner of the teacher's addDirectoriesRecursively.
func (w *FileWatcher) addTreeRecursively(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return ferr.Wrap(ferr.Watch, err, "watch directory %s", path)
		}
		w.dirsMu.Lock()
		w.dirs[pathutil.ToDBPath(path)] = true
		w.dirsMu.Unlock()
		return nil
	})
}

// AttachStore installs st as the store the worker materializes renames
// against, replacing any previously attached store.
func (w *FileWatcher) AttachStore(st *store.Store) {
	w.storeMu.Lock()
	defer w.storeMu.Unlock()
	w.st = st
}

func (w *FileWatcher) attachedStore() *store.Store {
	w.storeMu.Lock()
	defer w.storeMu.Unlock()
	return w.st
}

// Start transitions the watcher into Watching, launching the notifier and
// worker goroutines on first call. Idempotent from Watching; an error from
// any terminal state.
func (w *FileWatcher) Start() error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.poisoned {
		return ferr.New(ferr.InvalidState, "watcher state is poisoned")
	}

	switch w.state {
	case Watching:
		return nil
	case Initializing, Paused:
		firstStart := w.state == Initializing
		w.state = Watching
		if firstStart {
			w.startTime = time.Now()
			go w.runNotifier()
			go w.runWorker()
		}
		return nil
	default:
		return ferr.New(ferr.InvalidState, "cannot start from state %s", w.state)
	}
}

// Pause transitions Watching -> Paused; idempotent from Paused.
func (w *FileWatcher) Pause() error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.poisoned {
		return ferr.New(ferr.InvalidState, "watcher state is poisoned")
	}
	switch w.state {
	case Paused:
		return nil
	case Watching:
		w.state = Paused
		return nil
	default:
		return ferr.New(ferr.InvalidState, "cannot pause from state %s", w.state)
	}
}

// Resume transitions Paused -> Watching; idempotent from Watching.
func (w *FileWatcher) Resume() error {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	if w.poisoned {
		return ferr.New(ferr.InvalidState, "watcher state is poisoned")
	}
	switch w.state {
	case Watching:
		return nil
	case Paused:
		w.state = Watching
		return nil
	default:
		return ferr.New(ferr.InvalidState, "cannot resume from state %s", w.state)
	}
}

// Stop transitions any non-terminal state to ShuttingDown, waits up to
// DrainTimeoutMs for the worker to finish its final flush, then Stopped.
// Idempotent; safe to call more than once (e.g. from a deferred cleanup
// mirroring Drop).
func (w *FileWatcher) Stop() error {
	w.stateMu.Lock()
	if w.state == Stopped {
		w.stateMu.Unlock()
		return nil
	}
	wasInitializing := w.state == Initializing
	w.state = ShuttingDown
	w.stateMu.Unlock()

	w.stopOnce.Do(func() {
		close(w.queue)
		if !wasInitializing {
			select {
			case <-w.workerDone:
			case <-time.After(w.config.drainTimeout()):
			}
		} else {
			close(w.workerDone)
		}
		_ = w.fsw.Close()
	})

	w.stateMu.Lock()
	w.state = Stopped
	w.stateMu.Unlock()
	return nil
}

// Status reports current telemetry, per spec §4.H/§4.I.
func (w *FileWatcher) Status() Status {
	w.stateMu.Lock()
	state := w.state
	w.stateMu.Unlock()

	w.dirsMu.Lock()
	paths := make([]string, 0, len(w.dirs))
	for p := range w.dirs {
		paths = append(paths, p)
	}
	w.dirsMu.Unlock()

	return Status{
		State:           state.String(),
		EventsProcessed: w.eventsProcessed.Load(),
		QueueSize:       len(w.queue),
		StartTime:       w.startTime,
		WatchedPaths:    paths,
	}
}

// runNotifier drains fsnotify's channels and pushes classified rawEvents
// onto the bounded queue, applying backpressure when it is full. It exits
// when fsnotify's Events channel closes (i.e. after Close()).
func (w *FileWatcher) runNotifier() {
	defer w.recoverToStopped("notifier")
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addTreeRecursively(ev.Name)
				}
			}
			raw := classifyFsnotifyEvent(ev)
			func() {
				defer func() { recover() }() // queue may be closed mid-shutdown; a send-on-closed-channel panic is expected and ignored, per spec's "channel-send errors in the OS layer are ignored"
				w.queue <- raw
			}()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("indexd: watch error: %v", err)
		}
	}
}

// classifyFsnotifyEvent reduces one fsnotify.Event to a rawEvent. fsnotify
// reports a rename as a single Rename op on the old path with no
// correlated "to" half, unlike notify-rs's tracker-id'd variants -- so it
// is classified as KindRename here. The worker (see processRaw) keeps it as
// the single pendingRenameFrom slot, to be paired with the next Create, and
// also records it in the remove tracker.
func classifyFsnotifyEvent(ev fsnotify.Event) rawEvent {
	now := time.Now()
	path := pathutil.ToDBPath(ev.Name)
	switch {
	case ev.Op&fsnotify.Create != 0:
		return rawEvent{Path: path, Kind: KindCreate, At: now}
	case ev.Op&fsnotify.Remove != 0:
		return rawEvent{Path: path, Kind: KindDelete, At: now}
	case ev.Op&fsnotify.Rename != 0:
		return rawEvent{Path: path, Kind: KindRename, At: now}
	default:
		return rawEvent{Path: path, Kind: KindModify, At: now}
	}
}

// runWorker is the single worker goroutine of spec §4.H: observe state,
// drain up to BatchSize queued messages, advance the reconstructor, expire
// stale remove records, flush the debouncer when ready and process.
func (w *FileWatcher) runWorker() {
	defer close(w.workerDone)
	defer w.recoverToStopped("worker")

	for {
		state := w.currentState()
		if state == Stopped {
			return
		}
		if state == ShuttingDown {
			w.drainOnce()
			w.processBatch(w.debouncer.Flush())
			return
		}
		if state == Paused || state == Initializing {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		w.drainOnce()

		now := time.Now()
		w.removeTracker.FlushExpired(now, removeTrackerWindow, w.debouncer)

		if w.debouncer.IsReadyToFlush() {
			w.processBatch(w.debouncer.Flush())
		}
	}
}

func (w *FileWatcher) currentState() State {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.state
}

// drainOnce pulls up to BatchSize messages off the queue without blocking
// once it is empty, classifying each into the debouncer / remove tracker.
func (w *FileWatcher) drainOnce() {
	for i := 0; i < w.config.BatchSize; i++ {
		select {
		case raw, ok := <-w.queue:
			if !ok {
				return
			}
			w.processRaw(raw)
		default:
			return
		}
	}
}

// processRaw folds one raw notifier event into the debouncer and remove
// tracker, applying the reconstruction rules of spec §4.G. It is only
// ever called from the worker goroutine, so pendingRenameFrom needs no
// synchronization of its own.
func (w *FileWatcher) processRaw(raw rawEvent) {
	now := raw.At
	switch raw.Kind {
	case KindRename:
		// Remember this as a "From" half, per spec §4.G's native-rename
		// variant handling -- also recorded in the remove tracker in case
		// no matching Create ever arrives (e.g. the source was genuinely
		// deleted, not moved), so FlushExpired still reports a true delete.
		w.pendingRenameFrom = raw.Path
		w.pendingRenameFromAt = now
		w.removeTracker.Record(raw.Path, now)
	case KindDelete:
		w.removeTracker.Record(raw.Path, now)
	case KindCreate:
		if w.pendingRenameFrom != "" && now.Sub(w.pendingRenameFromAt) <= removeTrackerWindow {
			oldPath := w.pendingRenameFrom
			w.pendingRenameFrom = ""
			w.removeTracker.MatchCreate(oldPath, now, removeTrackerWindow) // consume the remove-tracker fallback entry too
			w.debouncer.AddEvent(pendingEvent{
				Path: oldPath, OldPath: oldPath, NewPath: raw.Path,
				Kind: KindRename, Priority: PriorityModify, At: now,
			})
			return
		}
		if oldPath, matched := w.removeTracker.MatchCreate(raw.Path, now, removeTrackerWindow); matched {
			w.debouncer.AddEvent(pendingEvent{
				Path: oldPath, OldPath: oldPath, NewPath: raw.Path,
				Kind: KindRename, Priority: PriorityModify, At: now,
			})
		} else {
			w.debouncer.AddEvent(pendingEvent{Path: raw.Path, Kind: KindCreate, Priority: PriorityCreate, At: now})
		}
	default:
		w.debouncer.AddEvent(pendingEvent{Path: raw.Path, Kind: KindModify, Priority: PriorityModify, At: now})
	}
}

// processBatch materializes a flushed batch against the attached store (if
// any) and increments the processed counter. Renames are the only kind
// currently materialized -- an update_file_path or rename_directory call
// against the store -- other kinds are observed; their effect is picked
// up by the next scan.
func (w *FileWatcher) processBatch(batch []pendingEvent) {
	if len(batch) == 0 {
		return
	}
	st := w.attachedStore()
	for _, e := range batch {
		switch {
		case e.isRename() && st != nil:
			// A rename that touches zero rows named a directory, not an
			// indexed file (RenamePath's UPDATE...WHERE simply matches no
			// row) -- fall back to the prefix rewrite for that case, not
			// only when RenamePath itself errors.
			n, err := st.RenamePath(e.OldPath, e.NewPath)
			if err != nil {
				log.Printf("indexd: rename %s -> %s not applied: %v", e.OldPath, e.NewPath, err)
				continue
			}
			if n == 0 {
				if _, rerr := st.RenamePrefix(e.OldPath, e.NewPath); rerr != nil {
					log.Printf("indexd: rename %s -> %s not applied: %v", e.OldPath, e.NewPath, rerr)
				}
			}
		case e.isRename():
			log.Printf("indexd: observed rename %s -> %s (no store attached)", e.OldPath, e.NewPath)
		default:
			log.Printf("indexd: observed %s %s", e.Kind, e.Path)
		}
	}
	w.eventsProcessed.Add(uint64(len(batch)))
}

// recoverToStopped forces the state machine to Stopped and marks it
// poisoned if goroutine named label panics, so subsequent state
// transitions return errors rather than deadlock or hang waiting on a
// worker that will never finish, per spec §4.H.
func (w *FileWatcher) recoverToStopped(label string) {
	if r := recover(); r != nil {
		log.Printf("indexd: watcher %s goroutine panicked: %v", label, r)
		w.stateMu.Lock()
		w.poisoned = true
		w.state = Stopped
		w.stateMu.Unlock()
	}
}

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindModify:
		return "modify"
	case KindDelete:
		return "delete"
	case KindRename:
		return "rename"
	default:
		return "unknown"
	}
}
