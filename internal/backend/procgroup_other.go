//go:build !unix

package backend

import "os/exec"

// killProcessGroup falls back to killing only the interpreter.
func killProcessGroup(cmd *exec.Cmd) {}
