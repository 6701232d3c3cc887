//go:build !windows

package procgroup

import (
	"os/exec"
	"syscall"
)

// Configure places the command in its own process group so that
// termination reaches every child it spawns.
func Configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// Interrupt sends SIGTERM to the command's process group.
func Interrupt(cmd *exec.Cmd) {
	signalGroup(cmd, syscall.SIGTERM)
}

// Kill sends SIGKILL to the command's process group.
func Kill(cmd *exec.Cmd) {
	signalGroup(cmd, syscall.SIGKILL)
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		// Negative PGID targets the full process group (runner + spawned children).
		_ = syscall.Kill(-pgid, sig)
		return
	}
	_ = cmd.Process.Kill()
}
