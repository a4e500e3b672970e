//go:build !windows

package runner

import (
	"context"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func defaultShell() []string {
	return []string{"/bin/sh", "-c"}
}

func shellCommand(ctx context.Context, shell []string, command string) *exec.Cmd {
	args := append(append([]string{}, shell[1:]...), command)
	return exec.CommandContext(ctx, shell[0], args...)
}

// prepare places the child in its own process group so that a timeout or
// cancellation kills every process the shell started, not just the shell.
func prepare(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
