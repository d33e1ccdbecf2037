//go:build windows

package executor

import (
	"os/exec"
	"syscall"

	"github.com/doeshing/deskrun/internal/ports"
)

const (
	defaultShell = "cmd"
	// No mechanism captures console output across a UAC boundary, so
	// elevated runs fail fast instead of silently dropping elevation.
	elevationSupported = false
)

func (r *LocalRunner) command(spec ports.RunSpec) *exec.Cmd {
	cmd := exec.Command(r.shell, "/c", spec.Command)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
	return cmd
}

func (r *LocalRunner) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func elevationDenied(code int, stderr []byte) bool {
	return false
}
