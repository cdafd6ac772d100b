package socks5

import (
	"errors"
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// Auth holds optional username/password credentials.
type Auth struct {
	Username string
	Password string
}

// ClientDial negotiates with the SOCKS5 server on conn and asks it to
// connect to address. On success conn carries the tunneled stream.
func ClientDial(conn net.Conn, auth Auth, address string) error {
	if err := negotiate(conn, auth); err != nil {
		return err
	}
	return connect(conn, address)
}

func negotiate(conn net.Conn, auth Auth) error {
	methods := []byte{txsocks5.MethodNone}
	if auth.Username != "" {
		methods = append(methods, txsocks5.MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
		return fmt.Errorf("socks5 negotiation: %w", err)
	}
	rep, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("socks5 negotiation: %w", err)
	}

	switch rep.Method {
	case txsocks5.MethodNone:
		return nil
	case txsocks5.MethodUsernamePassword:
		if auth.Username == "" {
			return errors.New("socks5: server requires username/password")
		}
		req := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password))
		if _, err := req.WriteTo(conn); err != nil {
			return fmt.Errorf("socks5 auth: %w", err)
		}
		urep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			return fmt.Errorf("socks5 auth: %w", err)
		}
		if urep.Status != txsocks5.UserPassStatusSuccess {
			return errors.New("socks5: authentication rejected")
		}
		return nil
	default:
		return fmt.Errorf("socks5: unsupported method %#x", rep.Method)
	}
}

func connect(conn net.Conn, address string) error {
	atyp, addr, port, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("socks5 address %q: %w", address, err)
	}
	if atyp == txsocks5.ATYPDomain {
		// ParseAddress prefixes domain names with their length byte.
		addr = addr[1:]
	}

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, addr, port).WriteTo(conn); err != nil {
		return fmt.Errorf("socks5 connect: %w", err)
	}
	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("socks5 connect: %w", err)
	}
	if rep.Rep != txsocks5.RepSuccess {
		return fmt.Errorf("socks5 connect %s: reply %#x", address, rep.Rep)
	}
	return nil
}
