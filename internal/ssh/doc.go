// Package ssh holds the SSH pieces behind the ssh:// upstream: loading
// signers from a key file or the agent, verifying host keys against a
// known_hosts file with trust on first use, and running the client
// handshake over an already dialed connection.
//
// Channel management and reconnects live in the dialer package.
package ssh
