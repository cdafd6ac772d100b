//go:build unix

package proxy

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// controlListener sets SO_REUSEADDR so a restarted proxy can rebind while
// old connections sit in TIME_WAIT.
func controlListener(_, _ string, c syscall.RawConn) error {
	var optErr error
	err := c.Control(func(fd uintptr) {
		optErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return optErr
}
