//go:build !unix

package proxy

import "syscall"

func controlListener(_, _ string, _ syscall.RawConn) error {
	return nil
}
