//go:build windows

package runner

import "os/exec"

// Windows has no process groups in the Unix sense; CommandContext's
// default kill of the immediate process is the best available.
func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
