//go:build !windows

package procrunner

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup puts the child in its own process group so
// killTree can signal the whole tree at once, grounded on the teacher's
// proc_linux.go Pdeathsig handling.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

// killTree sends SIGKILL to the negative PID (the whole process group),
// falling back to killing just the direct child if that fails.
func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}
