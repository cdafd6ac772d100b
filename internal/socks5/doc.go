// Package socks5 runs the client half of a SOCKS5 CONNECT handshake on top
// of the protocol types in github.com/txthinking/socks5.
//
// The proxy uses it when origin fetches are routed through a socks5://
// upstream.
package socks5
