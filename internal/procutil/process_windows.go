//go:build windows

package procutil

import (
	"os/exec"
	"strconv"
)

func setGroup(*exec.Cmd) {}

// signalGroup kills the process tree of cmd; Windows has no graceful
// equivalent of SIGTERM for console children.
func signalGroup(cmd *exec.Cmd, _ bool) error {
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func shellArgs(cmdline string) []string {
	return []string{"cmd", "/C", cmdline}
}
