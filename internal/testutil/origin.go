package testutil

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Origin is a minimal HTTP/1.0 origin server for proxy tests. It records
// each request it sees and answers with a fixed response, then closes.
type Origin struct {
	ln       net.Listener
	response []byte
	conns    atomic.Int64

	mu       sync.Mutex
	requests [][]string

	wg sync.WaitGroup
}

// StartOrigin serves response to every connection until the test ends.
func StartOrigin(t *testing.T, ctx context.Context, response []byte) *Origin {
	t.Helper()

	o := &Origin{ln: listenLoopback(t, ctx), response: response}
	o.wg.Go(o.serve)
	t.Cleanup(func() {
		_ = o.ln.Close()
		o.wg.Wait()
	})
	return o
}

// Addr returns the listen address as host:port.
func (o *Origin) Addr() string {
	return o.ln.Addr().String()
}

// Conns returns how many connections have been accepted.
func (o *Origin) Conns() int {
	return int(o.conns.Load())
}

// Requests returns the header lines of every request received, without
// line terminators.
func (o *Origin) Requests() [][]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]string(nil), o.requests...)
}

func (o *Origin) serve() {
	for {
		c, err := o.ln.Accept()
		if err != nil {
			return
		}
		o.conns.Add(1)
		o.wg.Go(func() { o.handle(c) })
	}
}

func (o *Origin) handle(c net.Conn) {
	defer c.Close()

	br := bufio.NewReader(c)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}

	o.mu.Lock()
	o.requests = append(o.requests, lines)
	o.mu.Unlock()

	_, _ = c.Write(o.response)
}
