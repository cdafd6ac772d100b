// Package testutil starts throwaway loopback servers for tests: echo
// targets, one-shot fake upstream proxies and recording HTTP/1.0 origins.
package testutil

import (
	"context"
	"net"
	"testing"
)

// listenLoopback listens on an ephemeral 127.0.0.1 port that is closed when
// the test ends.
func listenLoopback(t *testing.T, ctx context.Context) net.Listener {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen loopback: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}
