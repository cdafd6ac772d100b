package testutil

import (
	"context"
	"net"
	"sync"
	"testing"
)

// StartSingleAcceptServer hands the first connection on a fresh loopback
// listener to handler, then stops accepting. The connection is closed when
// handler returns.
//
// The returned func closes the listener and blocks until handler is done;
// tests call it to make sure handler's assertions have run.
func StartSingleAcceptServer(t *testing.T, ctx context.Context, handler func(net.Conn)) (net.Listener, func()) {
	t.Helper()

	ln := listenLoopback(t, ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := ln.Accept()
		_ = ln.Close()
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	}()

	var once sync.Once
	return ln, func() {
		once.Do(func() {
			_ = ln.Close()
			<-done
		})
	}
}
