//go:build !windows

package statestore

import "syscall"

// isProcessAlive sends signal 0, which performs permission/existence
// checks without actually signaling the process.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil
}
