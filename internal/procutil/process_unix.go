//go:build !windows

package procutil

import (
	"fmt"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the whole process group led by cmd. A negative pid
// addresses the group; the leader alone is signalled if that fails.
func signalGroup(cmd *exec.Cmd, force bool) error {
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	pid := cmd.Process.Pid
	if err := unix.Kill(-pid, sig); err != nil {
		if err2 := unix.Kill(pid, sig); err2 != nil {
			return fmt.Errorf("failed to signal process group -%d: %v, also failed to signal process %d: %v", pid, err, pid, err2)
		}
	}
	return nil
}

func shellArgs(cmdline string) []string {
	return []string{"/bin/sh", "-c", cmdline}
}
