//go:build !windows

package resilience

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isProcessAlive sends signal 0. EPERM means the process exists under
// another user.
func isProcessAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
