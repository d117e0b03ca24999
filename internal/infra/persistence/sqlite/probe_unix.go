//go:build !windows

package sqlite

import (
	"os"
	"syscall"
)

// isProcessRunning checks whether the PID refers to a live process.
// Signal 0 probes for existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
