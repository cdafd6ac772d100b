// Package dialer opens the proxy's outbound connections to origin servers.
//
// Origins are reached directly by default. An upstream URL can route them
// through an HTTP(S) CONNECT proxy, a SOCKS5 proxy, or an SSH server's
// direct-tcpip channels instead; the forwarder only sees a Dialer.
package dialer
