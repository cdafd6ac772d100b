package proxy

import (
	"context"
	"fmt"
	"net"
)

// ListenTCP opens the proxy's listening socket. Platform socket options
// (SO_REUSEADDR on unix) are set before bind, and every client connection
// returned by Accept carries keepAlive.
func ListenTCP(ctx context.Context, network, addr string, keepAlive net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlListener}

	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}
	return &KeepAliveListener{Listener: ln, KeepAliveConfig: keepAlive}, nil
}

// KeepAliveListener sets TCP keepalive on accepted client connections, so
// a worker blocked on a vanished client eventually gets an error.
type KeepAliveListener struct {
	net.Listener
	net.KeepAliveConfig
}

func (l *KeepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// Best effort; the connection is usable either way.
		_ = tc.SetKeepAliveConfig(l.KeepAliveConfig)
	}
	return conn, nil
}
