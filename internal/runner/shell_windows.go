//go:build windows

package runner

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

func defaultShell() []string {
	return []string{"cmd.exe", "/C"}
}

// shellCommand passes the command line through verbatim: cmd.exe does its own
// quote parsing and Go's argument escaping would break pipelines like
// `wmic ... | findstr "Running"`.
func shellCommand(ctx context.Context, shell []string, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, shell[0])
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: strings.Join(append(append([]string{}, shell...), command), " "),
	}
	return cmd
}

// prepare kills the whole process tree on cancellation; killing cmd.exe alone
// leaves ping.exe and friends running.
func prepare(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
		if err := kill.Run(); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
