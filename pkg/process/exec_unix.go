//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setProcessGroup runs the child in its own process group so cancellation
// also stops the tools it spawns (idf.py drives cmake and ninja).
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
