// Package pathutil provides the canonical string form of filesystem paths
// used as stable keys across the store, so that the same file is addressed
// by the same string regardless of platform path separators or symlinks.
package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// ToDBPath normalizes p to the form stored in the index: on case-sensitive
// POSIX filesystems the string is preserved, on backslash-separated hosts
// separators are rewritten to forward slash so stores built on different
// platforms remain comparable.
func ToDBPath(p string) string {
	if runtime.GOOS == "windows" {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return p
}

// CanonicalPath resolves p to an absolute, symlink-free path for comparing
// against live filesystem state (e.g. watcher-driven DB updates against a
// path reported by the OS notifier). Unlike ToDBPath this touches the
// filesystem and can fail if p does not exist.
func CanonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path may not exist yet (e.g. a rename's new path observed before
		// the old one is flushed) -- fall back to the absolute form.
		return ToDBPath(abs), nil
	}
	return ToDBPath(real), nil
}

// HasPathPrefix reports whether p is dir itself or a descendant of dir,
// matching the trailing-separator-explicit semantics required by
// rename_directory: "A/x" is a descendant of "A", but "AB" is not.
func HasPathPrefix(p, dir string) bool {
	if p == dir {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}
