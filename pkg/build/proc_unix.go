//go:build unix

package build

import (
	"os/exec"
	"syscall"
)

// setProcessGroup starts the build in its own process group so that a timeout
// takes down the wrapper script together with the JVM it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
