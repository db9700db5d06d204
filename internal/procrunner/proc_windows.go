//go:build windows

package procrunner

import (
	"os/exec"
	"strconv"
	"syscall"
)

// createNewProcessGroup starts the child as the root of its own console
// process group, so a Ctrl+C sent to this process's console is not
// delivered to it.
const createNewProcessGroup = 0x00000200

func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewProcessGroup,
	}
}

// killTree terminates the child and every process it spawned via
// taskkill /T, and kills the direct child alone if taskkill cannot run.
func killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid)).Run(); err != nil {
		_ = cmd.Process.Kill()
	}
}
