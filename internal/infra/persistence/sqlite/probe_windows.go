//go:build windows

package sqlite

import "os"

// isProcessRunning checks whether the PID refers to a live process.
// FindProcess only succeeds for live processes on Windows.
func isProcessRunning(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
