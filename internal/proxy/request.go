package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrMethodNotAllowed = errors.New("method not implemented")
	ErrBadURI           = errors.New("bad request uri")
)

// maxLineLength caps request and header lines.
const maxLineLength = 8192

// Target is an origin resource named by an absolute http:// URI.
type Target struct {
	Host string
	Port string
	Path string // path plus query, always starting with "/"
}

// Addr returns host:port for dialing.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// Request is a parsed proxy request line. Headers are read and dropped.
type Request struct {
	Method  string
	URI     string
	Version string
	Target  Target
}

// ReadRequest reads one request line and its headers from br.
//
// Only GET (any case) with an http:// URI is accepted. The header block is
// consumed up to the blank line even when the request line is rejected, so
// an error response can be written cleanly afterward.
func ReadRequest(br *bufio.Reader) (*Request, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if err := discardHeaders(br); err != nil {
		return nil, err
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, line)
	}

	req := &Request{Method: fields[0], URI: fields[1]}
	if len(fields) > 2 {
		req.Version = fields[2]
	}

	if !strings.EqualFold(req.Method, "GET") {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, req.Method)
	}

	req.Target, err = ParseURI(req.URI)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ParseURI splits http://host[:port][/path] into its parts.
//
// The port is the run of digits after ':' and defaults to 80 when absent or
// empty. The path runs from the first '/' and defaults to "/". No other
// normalization is done.
func ParseURI(uri string) (Target, error) {
	const scheme = "http://"
	if !strings.HasPrefix(uri, scheme) {
		return Target{}, fmt.Errorf("%w: %q is not http://", ErrBadURI, uri)
	}
	rest := uri[len(scheme):]

	t := Target{Host: rest, Port: "80", Path: "/"}
	if i := strings.IndexAny(rest, ":/"); i >= 0 {
		t.Host, rest = rest[:i], rest[i:]
	} else {
		rest = ""
	}
	if t.Host == "" {
		return Target{}, fmt.Errorf("%w: %q has no host", ErrBadURI, uri)
	}

	if strings.HasPrefix(rest, ":") {
		rest = rest[1:]
		n := 0
		for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
			n++
		}
		if n > 0 {
			t.Port = rest[:n]
		}
		rest = rest[n:]
	}

	if strings.HasPrefix(rest, "/") {
		t.Path = rest
	}
	return t, nil
}

// readLine returns the next line without its CRLF or LF terminator.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", fmt.Errorf("%w: line longer than %d bytes", ErrMalformedRequest, br.Size())
	case err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)):
		return "", err
	}
	line = trimEOL(line)
	return string(line), nil
}

func discardHeaders(br *bufio.Reader) error {
	for {
		line, err := readLine(br)
		if errors.Is(err, io.EOF) {
			// Client half-closed after the request line.
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
	}
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
		if n := len(b); n > 0 && b[n-1] == '\r' {
			b = b[:n-1]
		}
	}
	return b
}
