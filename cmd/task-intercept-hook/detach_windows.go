//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// detach starts cmd with CREATE_NEW_PROCESS_GROUP so it survives this
// hook process's exit (spec.md section 4.8 step 5's detach requirement),
// mirroring internal/captain/supervisor.go's wezterm.exe --always-new-process
// launch shape for Windows.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: 0x00000200} // CREATE_NEW_PROCESS_GROUP
}
