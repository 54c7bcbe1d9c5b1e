//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// detach starts cmd in its own session so it survives this hook
// process's exit (spec.md section 4.8 step 5's "forked worker must
// detach from the hook's process lifetime").
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
