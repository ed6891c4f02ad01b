package control

import (
	"os"
	"os/exec"
	"time"

	"github.com/gofrs/flock"

	"github.com/marlinhq/indexd/internal/ferr"
)

// stopWaitTimeout is how long Stop waits for the daemon's PID to exit
// before escalating, per spec §4.I.
const stopWaitTimeout = 5 * time.Second

// DaemonEnvVar names an environment variable reserved for the hidden
// daemon process. Nothing in this module reads it: the daemon receives its
// store/root/port arguments as the StoreArg, RootArg and PortArg flags
// (see the watch-daemon subcommand in internal/cli/watch.go).
const DaemonEnvVar = "INDEXD_WATCH_DAEMON"

// Start ensures a watch daemon is running for storePath, spawning one via
// exe (the current executable, re-invoked with args) if none is already
// alive. args should cause the child to run the hidden daemon subcommand
// (see internal/cli/watch.go) with storePath, rootDir and DerivePort(storePath)
// baked in. No-op if a control file already names a live PID.
func Start(storePath string, exe string, args []string) error {
	controlPath := FilePath(storePath)

	if info, err := Read(controlPath); err == nil {
		if processAlive(info.PID) {
			return nil
		}
		_ = Remove(controlPath)
	}

	lock := flock.New(LockPath(storePath))
	locked, err := lock.TryLock()
	if err != nil {
		return ferr.Wrap(ferr.Watch, err, "acquire control lock for %s", storePath)
	}
	if !locked {
		// Another process is starting this store's daemon right now.
		return nil
	}
	defer lock.Unlock()

	// Re-check under the lock: a racing Start may have just written the
	// control file while we were acquiring it.
	if info, err := Read(controlPath); err == nil && processAlive(info.PID) {
		return nil
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return ferr.Wrap(ferr.Watch, err, "spawn watch daemon for %s", storePath)
	}
	return cmd.Process.Release()
}

// Status reads storePath's control file and queries the daemon for its
// current status DTO.
func Status(storePath string) (StatusDTO, error) {
	info, err := Read(FilePath(storePath))
	if err != nil {
		return StatusDTO{}, err
	}
	if !processAlive(info.PID) {
		return StatusDTO{}, ferr.New(ferr.NotFound, "watch daemon for %s is not running", storePath)
	}
	return RequestStatus(info.Port)
}

// Stop asks storePath's daemon to stop, waiting up to stopWaitTimeout for
// its PID to exit before escalating with a terminate signal, then removes
// the control file.
func Stop(storePath string) error {
	controlPath := FilePath(storePath)
	info, err := Read(controlPath)
	if err != nil {
		return err
	}

	if processAlive(info.PID) {
		if _, err := Request(info.Port, "stop"); err != nil {
			return err
		}

		deadline := time.Now().Add(stopWaitTimeout)
		for time.Now().Before(deadline) && processAlive(info.PID) {
			time.Sleep(50 * time.Millisecond)
		}
		if processAlive(info.PID) {
			_ = terminateProcess(info.PID)
		}
	}

	return Remove(controlPath)
}

// selfInfo returns the Info this process should publish once it has bound
// its listener on the given port -- used by the hidden daemon subcommand.
func selfInfo(port int) Info {
	return Info{PID: os.Getpid(), Port: port}
}

// PortArg and StoreArg are the flag names the hidden daemon subcommand
// parses out of args passed by Start; kept here so the client side
// (Start) and the daemon side (the watch-daemon command in
// internal/cli/watch.go) agree on the argument shape without the CLI
// importing control's internals beyond these constants.
const (
	PortArg  = "--control-port"
	StoreArg = "--store"
	RootArg  = "--root"
)

// PublishSelf writes this process's own control file once it has started
// listening, called by the daemon subcommand after Serve's listener is
// bound.
func PublishSelf(storePath string, port int) error {
	return Write(FilePath(storePath), selfInfo(port))
}
