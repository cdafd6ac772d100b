package dialer

import (
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Config controls outbound connection setup.
type Config struct {
	// DialTimeout bounds DNS lookup plus TCP connect. Zero means no limit.
	DialTimeout time.Duration

	// NegotiationTimeout bounds proxy handshakes (TLS, CONNECT, SSH).
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	// SSHKeyPath is a private key file, "agent", or empty.
	SSHKeyPath string

	// SSHKnownHostsPath enables host key checking when non-empty.
	SSHKnownHostsPath string

	Logger zerolog.Logger
}
