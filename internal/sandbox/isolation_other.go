//go:build !linux

package sandbox

import (
	"errors"
	"os"
	"syscall"
)

var errNoGroupWait = errors.New("sandbox: waiting without reaping is not supported")

// Namespaces are Linux only; elsewhere the compiler still runs detached from
// the caller's environment but shares the host network.
func sysProcAttr(bool) *syscall.SysProcAttr {
	return nil
}

func killGroup(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

// awaitExit is unsupported here, so no kill is sent once the engine is gone.
func awaitExit(int) error {
	return errNoGroupWait
}
