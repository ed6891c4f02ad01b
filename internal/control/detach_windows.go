//go:build windows

package control

import (
	"os/exec"
	"syscall"
)

// detach starts cmd detached from the parent's console, the closest
// Windows equivalent of Unix's session detach.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: 0x00000008} // DETACHED_PROCESS
}
