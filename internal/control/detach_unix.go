//go:build !windows

package control

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in its own session so it outlives the parent CLI
// invocation that spawned it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
