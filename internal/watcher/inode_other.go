//go:build windows

package watcher

import "hash/fnv"

// inodeKey has no portable inode equivalent on Windows, so it falls back
// to a hash of the path itself -- per spec §4.G, "otherwise a hash of the
// path". This degrades rename detection for same-inode renames where the
// OS also changes case or normalizes the path, but matches the original
// design's documented fallback.
func inodeKey(path string) (uint64, bool) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64(), true
}
