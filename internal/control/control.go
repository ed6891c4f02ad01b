// Package control implements the per-store singleton watch daemon and its
// loopback control protocol (spec §4.I): a sibling control file recording
// {pid, port}, a deterministic port derived from the store path, and a
// one-request-per-connection TCP protocol for status and stop.
package control

import (
	"encoding/json"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	natomic "github.com/natefinch/atomic"

	"github.com/marlinhq/indexd/internal/ferr"
)

// portWindowBase and portWindowSize bound the fixed 1000-port range a
// store path's daemon is deterministically assigned into, so repeated
// `watch start` invocations against the same store always agree on where
// to dial without needing to read the control file first.
const (
	portWindowBase = 47100
	portWindowSize = 1000
)

// Info is the control file's contents.
type Info struct {
	PID  int `json:"pid"`
	Port int `json:"port"`
}

// FilePath returns the control file sibling of storePath, with a
// .watch.json extension (spec §6).
func FilePath(storePath string) string {
	ext := filepath.Ext(storePath)
	base := strings.TrimSuffix(storePath, ext)
	return base + ".watch.json"
}

// LockPath returns the gofrs/flock backstop lock sibling of storePath,
// held by Start only while it re-checks the control file and spawns the
// daemon, to avoid a TOCTOU race between two concurrent `watch start`
// invocations. The daemon writes the control file later, without the lock.
func LockPath(storePath string) string {
	ext := filepath.Ext(storePath)
	base := strings.TrimSuffix(storePath, ext)
	return base + ".watch.lock"
}

// DerivePort deterministically maps storePath into the fixed port window,
// so the same store always resolves to the same daemon port.
func DerivePort(storePath string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(storePath))
	return portWindowBase + int(h.Sum64()%uint64(portWindowSize))
}

// Write atomically writes info to path.
func Write(path string, info Info) error {
	body, err := json.Marshal(info)
	if err != nil {
		return ferr.Wrap(ferr.Other, err, "marshal control file")
	}
	if err := natomic.WriteFile(path, strings.NewReader(string(body))); err != nil {
		return ferr.Wrap(ferr.Io, err, "write control file %s", path)
	}
	return nil
}

// Read parses the control file at path.
func Read(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, ferr.New(ferr.NotFound, "control file not found: %s", path)
		}
		return Info{}, ferr.Wrap(ferr.Io, err, "read control file %s", path)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, ferr.Wrap(ferr.Other, err, "parse control file %s", path)
	}
	return info, nil
}

// Remove deletes the control file, ignoring a not-found error (the daemon
// may have already cleaned up on exit).
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return ferr.Wrap(ferr.Io, err, "remove control file %s", path)
	}
	return nil
}
