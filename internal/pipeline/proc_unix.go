//go:build unix

package pipeline

import (
	"os/exec"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// detach puts the process in its own group so a timeout kills everything the
// stage command spawned, not just the shell.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}

// lowerPriority renices a started process, capped at the lowest priority.
func lowerPriority(pid, nice int, log *zap.Logger) {
	if nice <= 0 {
		return
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, pid, min(nice, 19)); err != nil {
		log.Debug("could not lower priority", zap.Int("pid", pid), zap.Error(err))
	}
}
