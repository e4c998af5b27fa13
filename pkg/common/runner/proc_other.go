//go:build !unix

package runner

import "os/exec"

// killProcessGroupOnCancel relies on WaitDelay alone where process groups
// are unavailable.
func killProcessGroupOnCancel(*exec.Cmd) {}
