//go:build !windows

package executor

import (
	"os/exec"
	"strings"
	"syscall"

	"github.com/doeshing/deskrun/internal/ports"
)

const (
	defaultShell       = "/bin/sh"
	elevationSupported = true
)

// command builds the child with its own process group so that terminate can
// signal the whole tree, not just the shell.
func (r *LocalRunner) command(spec ports.RunSpec) *exec.Cmd {
	var cmd *exec.Cmd
	if spec.Elevated {
		// -n makes sudo fail instead of prompting when it needs a password;
		// the refusal lands on stderr and is surfaced as a Failed outcome.
		cmd = exec.Command("sudo", "-n", "--", r.shell, "-c", spec.Command)
	} else {
		cmd = exec.Command(r.shell, "-c", spec.Command)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

func (r *LocalRunner) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// negative pid addresses the process group
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
	}
}

// elevationDenied distinguishes sudo's own refusal from the command failing
// under sudo: sudo exits 1 and prefixes its diagnostics with "sudo:".
func elevationDenied(code int, stderr []byte) bool {
	return code == 1 && strings.HasPrefix(strings.TrimSpace(string(stderr)), "sudo:")
}
