package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/singleflight"

	internalssh "github.com/die-net/proxycache/internal/ssh"
)

// SSHProxyDialer opens connections as direct-tcpip channels on one shared
// SSH transport.
//
// The transport is connected lazily on first use. Concurrent first callers
// share one connection attempt. If opening a channel fails at the transport
// level, the transport is dropped and rebuilt once before giving up.
type SSHProxyDialer struct {
	sshAddr string
	cfg     internalssh.ClientConfig
	direct  Dialer

	mu     sync.Mutex
	client *ssh.Client
	sf     singleflight.Group
}

// NewSSHProxyDialer returns a dialer tunneling through the SSH server at
// sshAddr. Password, key (cfg.SSHKeyPath), or both may be used.
func NewSSHProxyDialer(cfg Config, sshAddr, username, password string) (*SSHProxyDialer, error) {
	signers, err := internalssh.LoadSigners(cfg.SSHKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ssh dialer: %w", err)
	}
	hostKeyCallback, err := internalssh.NewHostKeyCallback(cfg.SSHKnownHostsPath, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("ssh dialer: %w", err)
	}

	clientCfg := internalssh.ClientConfig{
		Username:         username,
		Password:         password,
		Signers:          signers,
		HostKeyCallback:  hostKeyCallback,
		HandshakeTimeout: cfg.NegotiationTimeout,
	}
	if err := clientCfg.Validate(); err != nil {
		return nil, fmt.Errorf("ssh dialer: %w", err)
	}

	return &SSHProxyDialer{
		sshAddr: sshAddr,
		cfg:     clientCfg,
		direct:  NewDirectDialer(cfg),
	}, nil
}

// DialContext opens a channel to address. Canceling ctx closes the channel.
func (f *SSHProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("ssh proxy dial %s %s: unsupported network", network, address)
	}

	client, err := f.getClient(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := client.DialContext(ctx, "tcp", address)
	if err != nil {
		// The server refused this destination; the transport is fine.
		var openErr *ssh.OpenChannelError
		if errors.As(err, &openErr) {
			return nil, fmt.Errorf("ssh proxy dial %s: %w", address, err)
		}

		f.dropClient(client)
		if client, err = f.getClient(ctx); err != nil {
			return nil, err
		}
		if conn, err = client.DialContext(ctx, "tcp", address); err != nil {
			return nil, fmt.Errorf("ssh proxy dial %s: %w", address, err)
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	return &channelConn{Conn: conn, stop: stop}, nil
}

// Close tears down the shared transport, if any.
func (f *SSHProxyDialer) Close() error {
	f.mu.Lock()
	client := f.client
	f.client = nil
	f.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}

func (f *SSHProxyDialer) getClient(ctx context.Context) (*ssh.Client, error) {
	f.mu.Lock()
	client := f.client
	f.mu.Unlock()
	if client != nil {
		return client, nil
	}

	ch := f.sf.DoChan("connect", func() (any, error) {
		f.mu.Lock()
		if f.client != nil {
			c := f.client
			f.mu.Unlock()
			return c, nil
		}
		f.mu.Unlock()

		// Not tied to ctx: other waiters may still want the transport.
		conn, err := f.direct.DialContext(context.Background(), "tcp", f.sshAddr)
		if err != nil {
			return nil, fmt.Errorf("ssh transport: %w", err)
		}
		c, err := internalssh.Handshake(conn, f.sshAddr, f.cfg)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		f.client = c
		f.mu.Unlock()
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*ssh.Client), nil
	}
}

// dropClient discards client if it is still the shared transport.
func (f *SSHProxyDialer) dropClient(client *ssh.Client) {
	f.mu.Lock()
	if f.client == client {
		f.client = nil
	}
	f.mu.Unlock()
	_ = client.Close()
}

type channelConn struct {
	net.Conn
	stop func() bool
}

func (c *channelConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
