//go:build !windows

package watcher

import (
	"os"
	"syscall"
)

// inodeKey returns a stable key for path based on its real inode number,
// so a remove followed by a create of the same underlying file (even
// under a different name) can be correlated even though the OS layer
// reports them as two independent events. Returns ok=false if path cannot
// be stat'd (e.g. it has already been removed by the time we look).
func inodeKey(path string) (uint64, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Ino), true
}
