// Package watcher implements the OS-notification-driven pipeline that
// keeps the index in sync with a live filesystem: a bounded event queue
// feeds a single worker goroutine, which debounces bursts of events,
// reconstructs renames out of remove/create pairs, and materializes the
// result against an attached store.
package watcher

import "time"

// Config holds the watcher's tunables, mirroring config.WatcherTuning so
// a project config file can override them without this package depending
// on viper.
type Config struct {
	// DebounceMs is the coalescing window: a path's pending event is not
	// flushed until this many milliseconds have passed since the last flush.
	DebounceMs int
	// BatchSize bounds how many queued messages the worker drains per
	// iteration before checking the debouncer.
	BatchSize int
	// MaxQueueSize bounds the channel between the OS notifier and the
	// worker; once full, sends apply backpressure.
	MaxQueueSize int
	// DrainTimeoutMs bounds how long Stop waits for the worker to finish
	// its final iteration during shutdown.
	DrainTimeoutMs int
}

// DefaultConfig returns the built-in tunables from spec §4.H.
func DefaultConfig() Config {
	return Config{
		DebounceMs:     100,
		BatchSize:      1000,
		MaxQueueSize:   100_000,
		DrainTimeoutMs: 5000,
	}
}

func (c Config) debounceWindow() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c Config) drainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMs) * time.Millisecond
}

// removeTrackerWindow is the fixed window within which a standalone create
// is matched against a prior standalone remove to synthesize a rename, per
// spec §4.G. It is not exposed as a tunable because the original design
// treats it as a structural constant rather than a per-deployment knob.
const removeTrackerWindow = 500 * time.Millisecond
