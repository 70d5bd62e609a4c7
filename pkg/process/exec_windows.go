//go:build windows

package process

import "os/exec"

// setProcessGroup is a no-op on Windows; Setpgid is not available and
// exec.CommandContext already kills the direct child.
func setProcessGroup(cmd *exec.Cmd) {}
